// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hublink/internal/model"
)

func TestRequestSync(t *testing.T) {
	tests := []struct {
		name    string
		cur     model.SyncStatus
		want    model.SyncStatus
		wantErr bool
	}{
		{"from local", model.SyncLocal, model.SyncPending, false},
		{"retry from failed", model.SyncFailed, model.SyncPending, false},
		{"already pending", model.SyncPending, model.SyncPending, true},
		{"already synced", model.SyncSynced, model.SyncSynced, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RequestSync(tt.cur)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSyncSucceeded(t *testing.T) {
	got, err := SyncSucceeded(model.SyncPending, "file_123")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, got)

	// The Hub's external id is mandatory.
	_, err = SyncSucceeded(model.SyncPending, "")
	assert.ErrorIs(t, err, ErrMissingHubFileID)

	_, err = SyncSucceeded(model.SyncLocal, "file_123")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSyncFailed(t *testing.T) {
	got, err := SyncFailed(model.SyncPending)
	require.NoError(t, err)
	assert.Equal(t, model.SyncFailed, got)

	_, err = SyncFailed(model.SyncSynced)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestContentEdited(t *testing.T) {
	got, err := ContentEdited(model.SyncSynced)
	require.NoError(t, err)
	assert.Equal(t, model.SyncPending, got)

	for _, cur := range []model.SyncStatus{model.SyncLocal, model.SyncPending, model.SyncFailed} {
		_, err := ContentEdited(cur)
		assert.ErrorIs(t, err, ErrInvalidTransition, "from %s", cur)
	}
}

func TestRequestIndex(t *testing.T) {
	got, err := RequestIndex(model.RAGNone, model.SyncSynced)
	require.NoError(t, err)
	assert.Equal(t, model.RAGPending, got)

	got, err = RequestIndex(model.RAGFailed, model.SyncSynced)
	require.NoError(t, err)
	assert.Equal(t, model.RAGPending, got)

	// Precondition: indexing never leaves none unless the item is synced.
	for _, sync := range []model.SyncStatus{model.SyncLocal, model.SyncPending, model.SyncFailed} {
		_, err := RequestIndex(model.RAGNone, sync)
		assert.ErrorIs(t, err, ErrNotSynced, "sync %s", sync)
	}

	_, err = RequestIndex(model.RAGIndexed, model.SyncSynced)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestIndexOutcomes(t *testing.T) {
	got, err := IndexSucceeded(model.RAGPending)
	require.NoError(t, err)
	assert.Equal(t, model.RAGIndexed, got)

	got, err = IndexFailed(model.RAGPending)
	require.NoError(t, err)
	assert.Equal(t, model.RAGFailed, got)

	_, err = IndexSucceeded(model.RAGNone)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = IndexFailed(model.RAGIndexed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUnindexed(t *testing.T) {
	for _, cur := range []model.RAGStatus{model.RAGNone, model.RAGPending, model.RAGIndexed, model.RAGFailed} {
		assert.Equal(t, model.RAGNone, Unindexed(cur))
	}
}

func TestInvalidTransitionMessage(t *testing.T) {
	_, err := RequestSync(model.SyncSynced)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Contains(t, err.Error(), "synced")
}
