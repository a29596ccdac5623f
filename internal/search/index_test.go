// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hublink/internal/model"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func testItem(id string, kind model.Kind, p model.Payload) model.Item {
	return model.Item{ID: id, Kind: kind, Payload: p, UpdatedAt: time.Now()}
}

func TestPutAndSearch(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Put(testItem("nt_1", model.KindNote, model.Payload{
		Content: "grocery list: apples and oranges",
	})))
	require.NoError(t, idx.Put(testItem("hl_1", model.KindHighlight, model.Payload{
		Text:  "concurrency is not parallelism",
		URL:   "https://example.com/talk",
		Title: "A Talk",
	})))

	hits, err := idx.Search("concurrency", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "hl_1", hits[0].ID)
	assert.Equal(t, model.KindHighlight, hits[0].Kind)
	assert.Equal(t, "A Talk", hits[0].Title)
	assert.Equal(t, "https://example.com/talk", hits[0].Source)
	assert.Contains(t, hits[0].Snippet, "concurrency")
}

func TestPutReplacesContent(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Put(testItem("nt_1", model.KindNote, model.Payload{Content: "about rust"})))
	require.NoError(t, idx.Put(testItem("nt_1", model.KindNote, model.Payload{Content: "about zig"})))

	hits, err := idx.Search("rust", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search("zig", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "nt_1", hits[0].ID)
}

func TestRemove(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Put(testItem("nt_1", model.KindNote, model.Payload{Content: "ephemeral"})))
	require.NoError(t, idx.Remove("nt_1"))

	hits, err := idx.Search("ephemeral", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Unknown ids are ignored.
	require.NoError(t, idx.Remove("nt_never_existed"))
}

func TestTitleIsSearchable(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Put(testItem("pg_1", model.KindPage, model.Payload{
		URL:           "https://example.com",
		Title:         "Distributed Consensus Primer",
		ExtractedText: "body text here",
	})))

	hits, err := idx.Search("consensus", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "pg_1", hits[0].ID)
}

func TestStemmedMatch(t *testing.T) {
	// porter tokenizer: "running" matches "run".
	idx := newTestIndex(t)

	require.NoError(t, idx.Put(testItem("nt_1", model.KindNote, model.Payload{Content: "went running this morning"})))

	hits, err := idx.Search("run", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestQueryOperatorsNeutralized(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Put(testItem("nt_1", model.KindNote, model.Payload{Content: "plain text"})))

	// FTS operators in user input must not break the query.
	for _, q := range []string{`"unbalanced`, "NOT", "a AND b OR c", "col:umn"} {
		_, err := idx.Search(q, 0)
		assert.NoError(t, err, "query %q", q)
	}
}

func TestEmptyQuery(t *testing.T) {
	idx := newTestIndex(t)

	hits, err := idx.Search("   ", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLimit(t *testing.T) {
	idx := newTestIndex(t)

	for _, id := range []string{"nt_1", "nt_2", "nt_3"} {
		require.NoError(t, idx.Put(testItem(id, model.KindNote, model.Payload{Content: "shared keyword"})))
	}

	hits, err := idx.Search("keyword", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestUseAfterClose(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Close())

	assert.ErrorIs(t, idx.Put(testItem("nt_1", model.KindNote, model.Payload{Content: "x"})), ErrClosed)
	assert.ErrorIs(t, idx.Remove("nt_1"), ErrClosed)
	_, err := idx.Search("x", 0)
	assert.ErrorIs(t, err, ErrClosed)

	// Closing twice is fine.
	require.NoError(t, idx.Close())
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.db")

	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.Put(testItem("nt_1", model.KindNote, model.Payload{Content: "durable fact"})))
	require.NoError(t, idx.Close())

	idx2, err := Open(path)
	require.NoError(t, err)
	defer idx2.Close()

	hits, err := idx2.Search("durable", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
