// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hub implements the HTTP client for the Hub's REST API: content
// ingestion, retrieval-index management, the non-streaming chat fallback,
// and token validation. The streaming event endpoint lives in package
// stream.
package hub
