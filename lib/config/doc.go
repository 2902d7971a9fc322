// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the switcher.
//
// Configuration comes from compiled-in defaults, optionally overlaid by a
// single file named by the SSH_AGENT_SWITCHER_CONFIG environment variable
// (via [Load]) or a --config flag (via [LoadFile]). There is no automatic
// file search. Command-line flags are applied by the caller after loading
// and take precedence over the file.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${USER}, and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- socket path, agents root, name prefixes, relay buffer
//     size, discovery connect timeout, logging
//   - [Default] -- returns a Config matching the historical command-line
//     defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other packages of this module.
package config
