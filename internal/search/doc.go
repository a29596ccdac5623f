// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search provides a local SQLite full-text index over captured
// library items. It is a purely local convenience: the Hub keeps the
// authoritative retrieval index, and nothing here touches sync or RAG
// state.
package search
