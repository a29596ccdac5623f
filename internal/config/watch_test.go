// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatch(t *testing.T, path string) <-chan *Config {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	got := make(chan *Config, 4)
	go Watch(ctx, path, func(c *Config) { got <- c })

	// Give the watcher a moment to register before the first write.
	time.Sleep(200 * time.Millisecond)
	return got
}

func awaitReload(t *testing.T, got <-chan *Config) *Config {
	t.Helper()
	select {
	case cfg := <-got:
		return cfg
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within deadline")
		return nil
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[hub]\ntoken = \"v1\"\n"), 0644))

	got := startWatch(t, path)

	require.NoError(t, os.WriteFile(path, []byte("[hub]\ntoken = \"v2\"\n"), 0644))

	cfg := awaitReload(t, got)
	assert.Equal(t, "v2", cfg.Hub.Token)
}

func TestWatchSkipsInvalidIntermediateState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[hub]\ntoken = \"v1\"\n"), 0644))

	got := startWatch(t, path)

	// An unparsable save must not produce a callback.
	require.NoError(t, os.WriteFile(path, []byte("this is not toml [[["), 0644))
	select {
	case cfg := <-got:
		t.Fatalf("invalid state was delivered: %+v", cfg)
	case <-time.After(1500 * time.Millisecond):
	}

	// The next valid save comes through.
	require.NoError(t, os.WriteFile(path, []byte("[hub]\ntoken = \"v3\"\n"), 0644))
	cfg := awaitReload(t, got)
	assert.Equal(t, "v3", cfg.Hub.Token)
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[hub]\ntoken = \"v1\"\n"), 0644))

	got := startWatch(t, path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1\n"), 0644))
	select {
	case cfg := <-got:
		t.Fatalf("sibling write triggered a reload: %+v", cfg)
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[hub]\ntoken = \"v1\"\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, func(*Config) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
