// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for remoting
// components.
//
// Configuration is loaded from a single file specified by either the
// REMOTING_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// Files may be YAML or JSONC (JSON with comments and trailing
// commas), selected by file extension.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// restriction is enabled and cache verification is on.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${REMOTING_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Channel, Transport, Cache
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
