// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/hublink/internal/hub"
	"github.com/jeranaias/hublink/internal/model"
	"github.com/jeranaias/hublink/internal/state"
	"github.com/jeranaias/hublink/internal/store"
)

// =============================================================================
// ERRORS
// =============================================================================

// PreconditionError reports a violated precondition on an indexing call.
// It is surfaced immediately and never retried automatically.
type PreconditionError struct {
	Condition string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return "precondition violated: " + e.Condition
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager is the sync orchestrator. It owns no state of its own; items
// live in the store, transitions come from the state machine, and network
// effects go through the hub client.
type Manager struct {
	store *store.Store
	hub   *hub.Client

	// projectID optionally scopes ingested content to a Hub project.
	projectID string
}

// NewManager creates a sync manager over the given store and Hub client.
func NewManager(st *store.Store, hc *hub.Client) *Manager {
	return &Manager{store: st, hub: hc}
}

// WithProjectID scopes future pushes to a Hub project.
func (m *Manager) WithProjectID(id string) *Manager {
	m.projectID = id
	return m
}

// =============================================================================
// PUSH
// =============================================================================

// PushItem uploads one item to the Hub's ingestion endpoint. Pushing an
// item that is already synced (and unedited) is a no-op success returning
// the item with its existing Hub file id: no duplicate upload happens.
// Pushing a failed item is the deliberate retry path; an item already in
// pending (an edited synced item, or an interrupted earlier push) skips the
// request transition and goes straight to upload. On failure the item lands
// in failed with the reason preserved for per-item display.
func (m *Manager) PushItem(ctx context.Context, kind model.Kind, id, targetCollection string) (model.Item, error) {
	it, err := m.store.GetByID(kind, id)
	if err != nil {
		return model.Item{}, err
	}

	if it.SyncStatus == model.SyncSynced {
		return it, nil
	}

	if it.SyncStatus != model.SyncPending {
		next, err := state.RequestSync(it.SyncStatus)
		if err != nil {
			return model.Item{}, err
		}
		if it, err = m.store.ApplySync(kind, id, next, "", ""); err != nil {
			return model.Item{}, err
		}
	}

	fileID, pushErr := m.hub.Ingest(ctx, m.ingestRequest(&it, targetCollection))
	if pushErr != nil {
		failed, terr := state.SyncFailed(it.SyncStatus)
		if terr == nil {
			it, _ = m.store.ApplySync(kind, id, failed, "", pushErr.Error())
		}
		return it, fmt.Errorf("push failed: %w", pushErr)
	}

	synced, err := state.SyncSucceeded(it.SyncStatus, fileID)
	if err != nil {
		return model.Item{}, err
	}
	if it, err = m.store.ApplySync(kind, id, synced, fileID, ""); err != nil {
		return model.Item{}, err
	}

	if err := m.store.SetLastSync(time.Now()); err != nil {
		return it, err
	}
	return it, nil
}

// ingestRequest builds the Hub ingestion body for an item.
func (m *Manager) ingestRequest(it *model.Item, collection string) hub.IngestRequest {
	meta := map[string]string{
		"item_id":    it.ID,
		"created_at": it.CreatedAt.Format(time.RFC3339),
	}
	if collection != "" {
		meta["collection"] = collection
	}
	if it.Payload.Title != "" {
		meta["title"] = it.Payload.Title
	}
	if it.Payload.Note != "" {
		meta["note"] = it.Payload.Note
	}
	if len(it.Payload.Tags) > 0 {
		meta["tags"] = strings.Join(it.Payload.Tags, ",")
	}

	return hub.IngestRequest{
		Content:   it.PrimaryContent(),
		Metadata:  meta,
		Source:    it.Source(),
		Type:      string(it.Kind),
		ProjectID: m.projectID,
	}
}

// =============================================================================
// INDEXING
// =============================================================================

// RequestIndexing asks the Hub to add an item's ingested file to its
// retrieval index. Indexing an unsynced item, or one without a Hub file
// id, is a contract violation reported as a precondition error without any
// network call.
func (m *Manager) RequestIndexing(ctx context.Context, kind model.Kind, id string) (model.Item, error) {
	it, err := m.store.GetByID(kind, id)
	if err != nil {
		return model.Item{}, err
	}

	if it.SyncStatus != model.SyncSynced {
		return model.Item{}, &PreconditionError{
			Condition: fmt.Sprintf("item must be synced before indexing (sync status is %s)", it.SyncStatus),
		}
	}
	if it.HubFileID == "" {
		return model.Item{}, &PreconditionError{Condition: "item has no hub file id"}
	}

	next, err := state.RequestIndex(it.RAGStatus, it.SyncStatus)
	if err != nil {
		return model.Item{}, err
	}
	if it, err = m.store.ApplyRAG(kind, id, next, ""); err != nil {
		return model.Item{}, err
	}

	if idxErr := m.hub.IndexFile(ctx, it.HubFileID); idxErr != nil {
		failed, terr := state.IndexFailed(it.RAGStatus)
		if terr == nil {
			it, _ = m.store.ApplyRAG(kind, id, failed, idxErr.Error())
		}
		return it, fmt.Errorf("indexing failed: %w", idxErr)
	}

	indexed, err := state.IndexSucceeded(it.RAGStatus)
	if err != nil {
		return model.Item{}, err
	}
	return m.store.ApplyRAG(kind, id, indexed, "")
}

// RemoveIndexing asks the Hub to drop an item from its retrieval index.
// Only a confirmed removal resets the RAG status to none; on failure the
// status is left unchanged and the error surfaced, so the local view never
// claims a removal the Hub did not perform.
func (m *Manager) RemoveIndexing(ctx context.Context, kind model.Kind, id string) (model.Item, error) {
	it, err := m.store.GetByID(kind, id)
	if err != nil {
		return model.Item{}, err
	}
	if it.HubFileID == "" {
		return model.Item{}, &PreconditionError{Condition: "item has no hub file id"}
	}

	if rmErr := m.hub.UnindexFile(ctx, it.HubFileID); rmErr != nil {
		return it, fmt.Errorf("unindex failed: %w", rmErr)
	}

	return m.store.ApplyRAG(kind, id, state.Unindexed(it.RAGStatus), "")
}

// IsStale reports whether an item's Hub-side index lags its local content:
// the item was edited after sync while its indexed copy stayed put. The
// index is left stale by design; re-indexing is an explicit caller action
// after a re-push.
func IsStale(it model.Item) bool {
	return it.RAGStatus == model.RAGIndexed && it.SyncStatus != model.SyncSynced
}

// =============================================================================
// STATS
// =============================================================================

// Stats aggregates item counts per status across all kinds. Pure read.
type Stats struct {
	Total    int
	BySync   map[model.SyncStatus]int
	ByRAG    map[model.RAGStatus]int
	ByKind   map[model.Kind]int
	LastSync time.Time
}

// Stats computes the aggregate counts. No side effects.
func (m *Manager) Stats() (Stats, error) {
	st := Stats{
		BySync:   make(map[model.SyncStatus]int),
		ByRAG:    make(map[model.RAGStatus]int),
		ByKind:   make(map[model.Kind]int),
		LastSync: m.store.LastSync(),
	}

	for _, kind := range model.Kinds {
		items, err := m.store.GetAll(kind)
		if err != nil {
			return Stats{}, err
		}
		for _, it := range items {
			st.Total++
			st.BySync[it.SyncStatus]++
			st.ByRAG[it.RAGStatus]++
			st.ByKind[it.Kind]++
		}
	}
	return st, nil
}
