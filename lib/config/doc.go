// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the timeoff client.
//
// Configuration is loaded from a single file specified by either the
// TIMEOFF_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search.
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas; anything else is YAML.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production requires an https API base
// URL.
//
// Variable expansion is performed on path and URL fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// This package depends on no other timeoff packages.
package config
