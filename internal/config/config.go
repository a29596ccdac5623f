// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete hublink client configuration.
type Config struct {
	// Hub connection
	Hub HubConfig `toml:"hub"`

	// Stream tuning
	Stream StreamConfig `toml:"stream"`

	// Local storage
	Storage StorageConfig `toml:"storage"`
}

// HubConfig addresses the local orchestration process.
type HubConfig struct {
	// BaseURL is the Hub's loopback origin.
	BaseURL string `toml:"base_url"`
	// Token is the optional bearer token.
	Token string `toml:"token"`
	// RequestTimeoutSecs bounds ingest/index calls.
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
	// ProjectID optionally scopes ingested content to a Hub project.
	ProjectID string `toml:"project_id"`
}

// StreamConfig tunes the event stream client.
type StreamConfig struct {
	// BaseDelayMs is the first reconnection delay in milliseconds.
	BaseDelayMs int `toml:"base_delay_ms"`
	// BackoffFactor multiplies the delay per attempt.
	BackoffFactor float64 `toml:"backoff_factor"`
	// MaxAttempts caps consecutive reconnection attempts.
	MaxAttempts int `toml:"max_attempts"`
	// HeartbeatSecs is the silent-connection window in seconds.
	HeartbeatSecs int `toml:"heartbeat_secs"`
}

// StorageConfig locates local state.
type StorageConfig struct {
	// DataDir holds the library collections and search index.
	// Default: ~/.hublink
	DataDir string `toml:"data_dir"`
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Hub: HubConfig{
			BaseURL:            "http://localhost:3000",
			RequestTimeoutSecs: 10,
		},
		Stream: StreamConfig{
			BaseDelayMs:   1000,
			BackoffFactor: 2.0,
			MaxAttempts:   10,
			HeartbeatSecs: 45,
		},
		Storage: StorageConfig{},
	}
}

// DefaultPath returns the default config file location
// (~/.hublink/config.toml).
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".hublink", "config.toml"), nil
}

// Load reads configuration from path, applies env overrides, and
// validates. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays HUBLINK_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("HUBLINK_HUB_URL"); v != "" {
		c.Hub.BaseURL = v
	}
	if v := os.Getenv("HUBLINK_TOKEN"); v != "" {
		c.Hub.Token = v
	}
	if v := os.Getenv("HUBLINK_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("HUBLINK_PROJECT_ID"); v != "" {
		c.Hub.ProjectID = v
	}
	if v := os.Getenv("HUBLINK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Stream.MaxAttempts = n
		}
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Hub.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid hub base URL %q", c.Hub.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("hub base URL must be http or https, got %q", u.Scheme)
	}
	if c.Stream.BackoffFactor < 1 {
		return fmt.Errorf("backoff factor must be >= 1, got %v", c.Stream.BackoffFactor)
	}
	if c.Stream.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", c.Stream.MaxAttempts)
	}
	if c.Hub.RequestTimeoutSecs < 1 {
		return fmt.Errorf("request timeout must be >= 1s, got %d", c.Hub.RequestTimeoutSecs)
	}
	return nil
}

// DataDir resolves the data directory, expanding the default when unset.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".hublink"), nil
}

// RequestTimeout returns the Hub request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Hub.RequestTimeoutSecs) * time.Second
}

// BaseDelay returns the first reconnection delay as a duration.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Stream.BaseDelayMs) * time.Millisecond
}

// HeartbeatTimeout returns the heartbeat window as a duration.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Stream.HeartbeatSecs) * time.Second
}
