// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngest(t *testing.T) {
	var gotReq IngestRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ingest", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]string{"file_id": "file_abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithToken("tok")
	fileID, err := c.Ingest(context.Background(), IngestRequest{
		Content: "highlight text",
		Type:    "highlight",
		Source:  "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "file_abc", fileID)
	assert.Equal(t, "highlight text", gotReq.Content)
	assert.Equal(t, "highlight", gotReq.Type)
}

func TestIngestAcceptsAltIDField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "file_alt"})
	}))
	defer srv.Close()

	fileID, err := NewClient(srv.URL).Ingest(context.Background(), IngestRequest{Content: "x", Type: "note"})
	require.NoError(t, err)
	assert.Equal(t, "file_alt", fileID)
}

func TestIngestMissingFileID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Ingest(context.Background(), IngestRequest{Content: "x", Type: "note"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing file id")
}

func TestAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).WithToken("stale").Ingest(context.Background(), IngestRequest{Content: "x", Type: "note"})
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Contains(t, err.Error(), "bad token")
}

func TestAPIErrorCarriesStatusAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"model loading"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).IndexFile(context.Background(), "file_1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Contains(t, apiErr.Message, "model loading")
}

func TestHubUnreachable(t *testing.T) {
	// A closed port: the request never reaches a Hub.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	err := NewClient(srv.URL).IndexFile(context.Background(), "file_1")
	assert.ErrorIs(t, err, ErrHubUnavailable)
}

func TestIndexFile(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL).IndexFile(context.Background(), "file_42"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/library/files/file_42/index", gotPath)
}

func TestUnindexFile(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL).UnindexFile(context.Background(), "file_42"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/library/files/file_42/unindex", gotPath)
}

func TestIndexFileRequiresID(t *testing.T) {
	err := NewClient("http://localhost:0").IndexFile(context.Background(), "")
	require.Error(t, err)
	err = NewClient("http://localhost:0").UnindexFile(context.Background(), "")
	require.Error(t, err)
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(ChatResponse{Reply: "echo: " + req.Message, SessionID: "s1"})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).Chat(context.Background(), "hello", "s1")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", resp.Reply)
	assert.Equal(t, "s1", resp.SessionID)
}

func TestChatHonorsContextCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL).Chat(ctx, "hello", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{"valid", http.StatusOK, `{"valid":true}`, true, false},
		{"invalid flag", http.StatusOK, `{"valid":false}`, false, false},
		{"rejected token", http.StatusUnauthorized, `{"error":"expired"}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/tokens/validate", r.URL.Path)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewClient(srv.URL).ValidateToken(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultBaseURL(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c = NewClient("http://localhost:3000/")
	assert.Equal(t, "http://localhost:3000", c.BaseURL())
}

func TestErrorsAreDistinguishable(t *testing.T) {
	assert.False(t, errors.Is(ErrAuthFailed, ErrHubUnavailable))
}
