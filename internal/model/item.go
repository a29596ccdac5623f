// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ITEM KINDS
// =============================================================================

// Kind identifies a library item variant. Each kind has its own collection
// namespace; IDs are unique within a kind and never reused.
type Kind string

// Library item kinds.
const (
	KindHighlight Kind = "highlight"
	KindClip      Kind = "clip"
	KindNote      Kind = "note"
	KindPage      Kind = "page"
)

// Kinds lists all item kinds in a stable order.
var Kinds = []Kind{KindHighlight, KindClip, KindNote, KindPage}

// Valid reports whether k is a recognized item kind.
func (k Kind) Valid() bool {
	switch k {
	case KindHighlight, KindClip, KindNote, KindPage:
		return true
	}
	return false
}

// idPrefixes maps each kind to its ID prefix.
var idPrefixes = map[Kind]string{
	KindHighlight: "hl_",
	KindClip:      "cl_",
	KindNote:      "nt_",
	KindPage:      "pg_",
}

// NewID generates a unique, kind-prefixed item ID.
func NewID(kind Kind) string {
	return idPrefixes[kind] + uuid.NewString()
}

// =============================================================================
// LIFECYCLE STATUS
// =============================================================================

// SyncStatus tracks whether a locally captured item has been uploaded to
// the Hub.
type SyncStatus string

// Sync statuses. Forward movement is local -> pending -> synced; a synced
// item drops back to pending only when its primary content is edited.
const (
	SyncLocal   SyncStatus = "local"
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// RAGStatus tracks whether an uploaded item has been added to the Hub's
// retrieval index.
type RAGStatus string

// RAG statuses. An item may only leave RAGNone while it is synced.
const (
	RAGNone    RAGStatus = "none"
	RAGPending RAGStatus = "pending"
	RAGIndexed RAGStatus = "indexed"
	RAGFailed  RAGStatus = "failed"
)

// =============================================================================
// LIBRARY ITEM
// =============================================================================

// Item is a locally captured library entry. All variants share this record;
// kind-specific fields live in Payload.
type Item struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SyncStatus SyncStatus `json:"sync_status"`
	RAGStatus  RAGStatus  `json:"rag_status"`

	// HubFileID is the Hub's identifier for this item, set exactly once on
	// the first successful sync. Required input to any indexing call.
	HubFileID string `json:"hub_file_id,omitempty"`

	// Most recent failure reasons, kept per item so different items can
	// show different errors at the same time.
	SyncError string `json:"sync_error,omitempty"`
	RAGError  string `json:"rag_error,omitempty"`

	Payload Payload `json:"payload"`
}

// Payload holds the kind-specific fields of an item.
type Payload struct {
	// Highlight
	Text      string `json:"text,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	Color     string `json:"color,omitempty"`
	Note      string `json:"note,omitempty"`

	// Clip and Note
	Content string   `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty"`

	// Page capture
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	ExtractedText string `json:"extracted_text,omitempty"`
	Screenshot    string `json:"screenshot,omitempty"`
}

// PrimaryContent returns the primary content field for the item's kind.
// Editing this field on a synced item demotes it to pending.
func (it *Item) PrimaryContent() string {
	switch it.Kind {
	case KindHighlight:
		return it.Payload.Text
	case KindPage:
		return it.Payload.ExtractedText
	default:
		return it.Payload.Content
	}
}

// Source returns the best source reference for the item, used as ingestion
// metadata.
func (it *Item) Source() string {
	if it.Payload.SourceURL != "" {
		return it.Payload.SourceURL
	}
	return it.Payload.URL
}

// =============================================================================
// PATCH
// =============================================================================

// Patch describes a partial update to an item's payload. Nil fields are
// left untouched.
type Patch struct {
	Text          *string
	SourceURL     *string
	Color         *string
	Note          *string
	Content       *string
	Tags          *[]string
	URL           *string
	Title         *string
	ExtractedText *string
	Screenshot    *string
}

// TouchesPrimary reports whether applying the patch would modify the
// primary content field for the given kind.
func (p Patch) TouchesPrimary(kind Kind) bool {
	switch kind {
	case KindHighlight:
		return p.Text != nil
	case KindPage:
		return p.ExtractedText != nil
	default:
		return p.Content != nil
	}
}

// Apply writes the patch's non-nil fields onto the payload.
func (p Patch) Apply(pl *Payload) {
	if p.Text != nil {
		pl.Text = *p.Text
	}
	if p.SourceURL != nil {
		pl.SourceURL = *p.SourceURL
	}
	if p.Color != nil {
		pl.Color = *p.Color
	}
	if p.Note != nil {
		pl.Note = *p.Note
	}
	if p.Content != nil {
		pl.Content = *p.Content
	}
	if p.Tags != nil {
		pl.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.URL != nil {
		pl.URL = *p.URL
	}
	if p.Title != nil {
		pl.Title = *p.Title
	}
	if p.ExtractedText != nil {
		pl.ExtractedText = *p.ExtractedText
	}
	if p.Screenshot != nil {
		pl.Screenshot = *p.Screenshot
	}
}
