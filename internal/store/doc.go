// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the local-first library store: typed CRUD over
// per-kind JSON collections with atomic writes. All mutation goes through
// the store's entry points so the edit-after-sync demotion rule cannot be
// bypassed by ad hoc field writes.
package store
