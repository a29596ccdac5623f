// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for the hublink client.
//
// Configuration is read from a TOML file with built-in defaults and
// HUBLINK_* environment variable overrides, in that order of precedence
// (env wins). The file can optionally be watched for hot reload of the
// Hub address and token.
package config
