// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the shared data types for the hublink client core:
// captured library items with their two-axis lifecycle status, and the typed
// stream events delivered by the Hub's event endpoint.
package model
