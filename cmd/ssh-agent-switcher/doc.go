// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// ssh-agent-switcher listens on a stable Unix socket (by default
// /tmp/ssh-agent.$USER) and proxies every connection to whichever SSH
// agent sshd most recently forwarded into an ssh-*/agent.* socket
// owned by the current user. Pointing SSH_AUTH_SOCK at the stable
// socket keeps long-lived shells (tmux, screen) working across
// reconnects.
//
// Commands:
//
//	ssh-agent-switcher [serve] [flags]   run the proxy (default)
//	ssh-agent-switcher find [flags]      show which agent socket would be used
//	ssh-agent-switcher check [flags]     list keys through a running switcher
//	ssh-agent-switcher version           print version information
//
// Configuration is read from the YAML file named by --config or
// SSH_AGENT_SWITCHER_CONFIG; flags override file values. The flag
// spellings --socketPath and --agentsDir are accepted as aliases of
// --socket-path and --agents-dir.
package main
