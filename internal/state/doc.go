// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state implements the pure transition rules for the two item
// lifecycle axes (sync status and RAG status). It performs no I/O; callers
// apply the returned status through the store.
package state
