// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeranaias/hublink/internal/model"
	"github.com/jeranaias/hublink/internal/state"
	"github.com/jeranaias/hublink/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrItemNotFound is returned when an item does not exist in its kind's
// collection. Use errors.Is(err, ErrItemNotFound) to check for it.
var ErrItemNotFound = &StoreError{Message: "item not found"}

// ErrUnknownKind is returned for a kind outside the recognized set.
var ErrUnknownKind = &StoreError{Message: "unknown item kind"}

// StoreError represents a store-level error.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// LOCAL STORE
// =============================================================================

// collectionFiles maps each kind to its collection file name.
var collectionFiles = map[model.Kind]string{
	model.KindHighlight: "highlights.json",
	model.KindClip:      "clips.json",
	model.KindNote:      "notes.json",
	model.KindPage:      "pages.json",
}

// lastSyncFile holds the last-successful-sync timestamp.
const lastSyncFile = "lastsync.json"

// Store is the local library store. One JSON array file per kind lives
// under BaseDir; every mutation persists the touched collection atomically
// before returning, so readers never see a partially written state.
type Store struct {
	mu sync.Mutex

	// BaseDir is the directory holding the collection files.
	// Default: ~/.hublink/library/
	BaseDir string

	items    map[model.Kind]map[string]*model.Item
	order    map[model.Kind][]string
	lastSync time.Time

	// now is the clock used for timestamps, replaceable in tests.
	now func() time.Time
}

// Open loads (or creates) a store in the default library directory.
func Open() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return OpenDir(filepath.Join(homeDir, ".hublink", "library"))
}

// OpenDir loads (or creates) a store in the given directory.
func OpenDir(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	s := &Store{
		BaseDir: baseDir,
		items:   make(map[model.Kind]map[string]*model.Item),
		order:   make(map[model.Kind][]string),
		now:     time.Now,
	}

	for _, kind := range model.Kinds {
		if err := s.loadCollection(kind); err != nil {
			return nil, fmt.Errorf("failed to load %s collection: %w", kind, err)
		}
	}
	s.loadLastSync()

	return s, nil
}

// loadCollection reads one kind's collection file into memory. A missing
// file is an empty collection.
func (s *Store) loadCollection(kind model.Kind) error {
	s.items[kind] = make(map[string]*model.Item)

	data, err := os.ReadFile(s.collectionPath(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var items []*model.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	for _, it := range items {
		s.items[kind][it.ID] = it
		s.order[kind] = append(s.order[kind], it.ID)
	}
	return nil
}

// loadLastSync reads the last-sync scalar; absence means never synced.
func (s *Store) loadLastSync() {
	data, err := os.ReadFile(filepath.Join(s.BaseDir, lastSyncFile))
	if err != nil {
		return
	}
	var rec struct {
		LastSync time.Time `json:"last_sync"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return
	}
	s.lastSync = rec.LastSync
}

// collectionPath returns the file path for a kind's collection.
func (s *Store) collectionPath(kind model.Kind) string {
	return filepath.Join(s.BaseDir, collectionFiles[kind])
}

// persistLocked writes one kind's collection atomically. Caller holds mu.
func (s *Store) persistLocked(kind model.Kind) error {
	items := make([]*model.Item, 0, len(s.order[kind]))
	for _, id := range s.order[kind] {
		items = append(items, s.items[kind][id])
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.collectionPath(kind), data, 0644)
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// GetAll returns copies of all items of a kind, in insertion order.
func (s *Store) GetAll(kind model.Kind) ([]model.Item, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Item, 0, len(s.order[kind]))
	for _, id := range s.order[kind] {
		out = append(out, *s.items[kind][id])
	}
	return out, nil
}

// GetByID returns a copy of one item.
func (s *Store) GetByID(kind model.Kind, id string) (model.Item, error) {
	if !kind.Valid() {
		return model.Item{}, ErrUnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[kind][id]
	if !ok {
		return model.Item{}, ErrItemNotFound
	}
	return *it, nil
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Add creates a new item from a payload. The store assigns the id and
// timestamps; new items start local/none with no Hub file id.
func (s *Store) Add(kind model.Kind, payload model.Payload) (model.Item, error) {
	if !kind.Valid() {
		return model.Item{}, ErrUnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	it := &model.Item{
		ID:         model.NewID(kind),
		Kind:       kind,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: model.SyncLocal,
		RAGStatus:  model.RAGNone,
		Payload:    payload,
	}

	s.items[kind][it.ID] = it
	s.order[kind] = append(s.order[kind], it.ID)

	if err := s.persistLocked(kind); err != nil {
		delete(s.items[kind], it.ID)
		s.order[kind] = s.order[kind][:len(s.order[kind])-1]
		return model.Item{}, err
	}
	return *it, nil
}

// Update applies a partial payload edit. UpdatedAt always refreshes. If the
// item was synced and the patch touches its primary content field, the sync
// status is forced to pending here, inside the same write, so the demotion
// can never be skipped between a read and a write.
func (s *Store) Update(kind model.Kind, id string, patch model.Patch) (model.Item, error) {
	if !kind.Valid() {
		return model.Item{}, ErrUnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[kind][id]
	if !ok {
		return model.Item{}, ErrItemNotFound
	}

	prev := *it
	patch.Apply(&it.Payload)
	it.UpdatedAt = s.now()

	if prev.SyncStatus == model.SyncSynced && patch.TouchesPrimary(kind) {
		next, err := state.ContentEdited(prev.SyncStatus)
		if err != nil {
			*it = prev
			return model.Item{}, err
		}
		it.SyncStatus = next
	}

	if err := s.persistLocked(kind); err != nil {
		*it = prev
		return model.Item{}, err
	}
	return *it, nil
}

// Delete removes an item. Deletion is unconditional and local-only; no
// tombstone is synced to the Hub. Returns false if the item did not exist.
func (s *Store) Delete(kind model.Kind, id string) (bool, error) {
	if !kind.Valid() {
		return false, ErrUnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[kind][id]
	if !ok {
		return false, nil
	}

	delete(s.items[kind], id)
	for i, oid := range s.order[kind] {
		if oid == id {
			s.order[kind] = append(s.order[kind][:i], s.order[kind][i+1:]...)
			break
		}
	}

	if err := s.persistLocked(kind); err != nil {
		s.items[kind][id] = it
		s.order[kind] = append(s.order[kind], id)
		return false, err
	}
	return true, nil
}

// =============================================================================
// LIFECYCLE STATUS WRITES
// =============================================================================

// ApplySync records a sync-axis outcome computed by the state machine.
// A synced status also records the Hub file id (set exactly once) and
// clears the previous failure reason; a failed status preserves the reason
// for per-item display.
func (s *Store) ApplySync(kind model.Kind, id string, status model.SyncStatus, hubFileID, reason string) (model.Item, error) {
	if !kind.Valid() {
		return model.Item{}, ErrUnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[kind][id]
	if !ok {
		return model.Item{}, ErrItemNotFound
	}

	prev := *it
	it.SyncStatus = status
	it.UpdatedAt = s.now()
	switch status {
	case model.SyncSynced:
		if it.HubFileID == "" {
			it.HubFileID = hubFileID
		}
		it.SyncError = ""
	case model.SyncFailed:
		it.SyncError = reason
	case model.SyncPending:
		it.SyncError = ""
	}

	if err := s.persistLocked(kind); err != nil {
		*it = prev
		return model.Item{}, err
	}
	return *it, nil
}

// ApplyRAG records a RAG-axis outcome computed by the state machine.
func (s *Store) ApplyRAG(kind model.Kind, id string, status model.RAGStatus, reason string) (model.Item, error) {
	if !kind.Valid() {
		return model.Item{}, ErrUnknownKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[kind][id]
	if !ok {
		return model.Item{}, ErrItemNotFound
	}

	prev := *it
	it.RAGStatus = status
	it.UpdatedAt = s.now()
	if status == model.RAGFailed {
		it.RAGError = reason
	} else {
		it.RAGError = ""
	}

	if err := s.persistLocked(kind); err != nil {
		*it = prev
		return model.Item{}, err
	}
	return *it, nil
}

// =============================================================================
// LAST SYNC TIMESTAMP
// =============================================================================

// LastSync returns the last-successful-sync timestamp (zero if never).
func (s *Store) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// SetLastSync records a successful sync time.
func (s *Store) SetLastSync(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(struct {
		LastSync time.Time `json:"last_sync"`
	}{LastSync: t})
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(filepath.Join(s.BaseDir, lastSyncFile), data, 0644); err != nil {
		return err
	}
	s.lastSync = t
	return nil
}

// =============================================================================
// TEST HOOKS
// =============================================================================

// SetClock replaces the store's clock. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
