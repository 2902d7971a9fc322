// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package switcher serves a stable Unix socket that stands in for
// SSH_AUTH_SOCK and relays each connection to whichever forwarded agent
// is live at the moment the client connects.
//
// [Switcher] is the single type. Start binds the socket with mode 0600
// (replacing a stale socket left by an earlier run), then accepts
// connections in a background goroutine. Every accepted connection is
// handled in its own goroutine: [discovery.FindAgent] picks an agent,
// [forward.Relay] carries the conversation, and both connections are
// closed on the way out. When no agent is found the client connection
// is simply closed, which SSH tooling reports as an absent agent.
//
// The accept loop never waits on discovery or relaying, so a hung agent
// stalls only its own connection. No read, write, or relay step has a
// timeout.
//
// Stop, or cancellation of the context passed to Start, closes the
// listener and removes the socket file. The file is removed only if it
// is still the socket this process bound. In-flight connections keep
// running until their peers hang up.
package switcher
