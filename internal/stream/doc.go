// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream maintains the long-lived connection to the Hub's event
// endpoint: SSE frame parsing, reconnection with exponential backoff, and a
// heartbeat watchdog that catches silent half-open connections.
package stream
