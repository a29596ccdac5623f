// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package library orchestrates moving captured items between their local
// and Hub-side states: pushing content to the ingestion endpoint and
// managing retrieval-index membership, driving every status change through
// the state machine and the store.
package library
