// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/hublink/internal/model"
)

// ErrClosed is returned when the index is used after Close.
var ErrClosed = errors.New("search index closed")

// schema is the SQLite layout: one row per item plus an FTS5 table kept in
// sync by triggers.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    title TEXT,
    content TEXT,
    source TEXT,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);

CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
    title,
    content,
    content='items',
    content_rowid='rowid',
    tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS items_ai AFTER INSERT ON items BEGIN
    INSERT INTO items_fts(rowid, title, content)
    VALUES (new.rowid, new.title, new.content);
END;

CREATE TRIGGER IF NOT EXISTS items_ad AFTER DELETE ON items BEGIN
    INSERT INTO items_fts(items_fts, rowid, title, content)
    VALUES ('delete', old.rowid, old.title, old.content);
END;

CREATE TRIGGER IF NOT EXISTS items_au AFTER UPDATE ON items BEGIN
    INSERT INTO items_fts(items_fts, rowid, title, content)
    VALUES ('delete', old.rowid, old.title, old.content);
    INSERT INTO items_fts(rowid, title, content)
    VALUES (new.rowid, new.title, new.content);
END;
`

// Hit is one search result.
type Hit struct {
	ID      string
	Kind    model.Kind
	Title   string
	Snippet string
	Source  string
}

// Index is the local item index.
type Index struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates or opens the index database at path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the database.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.db == nil {
		return nil
	}
	err := idx.db.Close()
	idx.db = nil
	return err
}

// Put inserts or replaces an item in the index.
func (idx *Index) Put(it model.Item) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.db == nil {
		return ErrClosed
	}

	_, err := idx.db.Exec(`
		INSERT INTO items (id, kind, title, content, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		it.ID, string(it.Kind), it.Payload.Title, it.PrimaryContent(), it.Source(), it.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to index item: %w", err)
	}
	return nil
}

// Remove deletes an item from the index. Unknown ids are ignored.
func (idx *Index) Remove(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.db == nil {
		return ErrClosed
	}

	if _, err := idx.db.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

// Search runs a full-text query over titles and content. limit <= 0 means
// a default of 50 results.
func (idx *Index) Search(query string, limit int) ([]Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.db == nil {
		return nil, ErrClosed
	}

	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := idx.db.Query(`
		SELECT i.id, i.kind, i.title,
		       snippet(items_fts, 1, '', '', ' … ', 12),
		       i.source
		FROM items_fts
		JOIN items i ON i.rowid = items_fts.rowid
		WHERE items_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var kind string
		if err := rows.Scan(&h.ID, &kind, &h.Title, &h.Snippet, &h.Source); err != nil {
			return nil, err
		}
		h.Kind = model.Kind(kind)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// buildFTSQuery quotes each term so user input cannot inject FTS operators.
func buildFTSQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, "")
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " ")
}
