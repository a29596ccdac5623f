// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"errors"
	"fmt"

	"github.com/jeranaias/hublink/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidTransition is returned when a transition is attempted from a
	// state for which it is undefined. Callers must check the current state
	// or handle the error, never assume success.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNotSynced is returned when indexing is requested for an item that
	// has not been synced to the Hub.
	ErrNotSynced = errors.New("item is not synced")

	// ErrMissingHubFileID is returned when a synced transition is recorded
	// without the Hub's external identifier.
	ErrMissingHubFileID = errors.New("hub file id is required")
)

// invalid builds an ErrInvalidTransition with the offending edge.
func invalid(axis string, from, to fmt.Stringer) error {
	return fmt.Errorf("%w: %s %v -> %v", ErrInvalidTransition, axis, from, to)
}

type status string

func (s status) String() string { return string(s) }

// =============================================================================
// SYNC AXIS
// =============================================================================

// RequestSync transitions local|failed -> pending when a sync is requested.
// A retry of a failed item goes through the same edge.
func RequestSync(cur model.SyncStatus) (model.SyncStatus, error) {
	switch cur {
	case model.SyncLocal, model.SyncFailed:
		return model.SyncPending, nil
	}
	return cur, invalid("sync", status(cur), status(model.SyncPending))
}

// SyncSucceeded transitions pending -> synced. The Hub's returned external
// id is required; recording a sync without one is a contract violation.
func SyncSucceeded(cur model.SyncStatus, hubFileID string) (model.SyncStatus, error) {
	if hubFileID == "" {
		return cur, ErrMissingHubFileID
	}
	if cur != model.SyncPending {
		return cur, invalid("sync", status(cur), status(model.SyncSynced))
	}
	return model.SyncSynced, nil
}

// SyncFailed transitions pending -> failed when the Hub rejected the push
// or the request errored.
func SyncFailed(cur model.SyncStatus) (model.SyncStatus, error) {
	if cur != model.SyncPending {
		return cur, invalid("sync", status(cur), status(model.SyncFailed))
	}
	return model.SyncFailed, nil
}

// ContentEdited transitions synced -> pending after the primary content of
// a synced item is mutated. The store enforces this edge during Update; it
// is the only way a synced item leaves synced.
func ContentEdited(cur model.SyncStatus) (model.SyncStatus, error) {
	if cur != model.SyncSynced {
		return cur, invalid("sync", status(cur), status(model.SyncPending))
	}
	return model.SyncPending, nil
}

// =============================================================================
// RAG AXIS
// =============================================================================

// RequestIndex transitions none|failed -> pending when indexing is
// requested. Precondition: the item's sync status is synced; indexing is
// never attempted for unsynced content.
func RequestIndex(cur model.RAGStatus, sync model.SyncStatus) (model.RAGStatus, error) {
	if sync != model.SyncSynced {
		return cur, fmt.Errorf("%w: sync status is %s", ErrNotSynced, sync)
	}
	switch cur {
	case model.RAGNone, model.RAGFailed:
		return model.RAGPending, nil
	}
	return cur, invalid("rag", status(cur), status(model.RAGPending))
}

// IndexSucceeded transitions pending -> indexed.
func IndexSucceeded(cur model.RAGStatus) (model.RAGStatus, error) {
	if cur != model.RAGPending {
		return cur, invalid("rag", status(cur), status(model.RAGIndexed))
	}
	return model.RAGIndexed, nil
}

// IndexFailed transitions pending -> failed.
func IndexFailed(cur model.RAGStatus) (model.RAGStatus, error) {
	if cur != model.RAGPending {
		return cur, invalid("rag", status(cur), status(model.RAGFailed))
	}
	return model.RAGFailed, nil
}

// Unindexed transitions any state -> none after the Hub confirms removal.
// Removal is explicit: the manager only calls this on a successful unindex
// response, never as a side effect of a failure.
func Unindexed(model.RAGStatus) model.RAGStatus {
	return model.RAGNone
}
