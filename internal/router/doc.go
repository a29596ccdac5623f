// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router filters stream events by session and reassembles streamed
// assistant replies from their chunks. It re-emits typed events through a
// compile-time-checked handler set instead of string-keyed callbacks.
package router
