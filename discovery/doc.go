// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package discovery locates a live SSH agent socket among the session
// directories sshd creates for forwarded agents.
//
// sshd places each forwarded agent at <root>/ssh-XXXX/agent.NNNN. Old
// sessions leave stale directories and dead sockets behind, and other
// users' sessions share the same root. [FindAgent] lists the root in
// sorted order, keeps only directories carrying the session prefix and
// owned by the expected user, and within each one tries every
// agent-prefixed entry that stat reports as a socket. The first
// successful connect wins.
//
// Every failure along the way (unlistable directories, entries that
// vanish between listing and stat, refused connects) disqualifies one
// candidate and the scan moves on. The only outcome surfaced to the
// caller is [ErrNotFound] when no candidate connects.
//
// [Scan] walks the tree with the same rules and reports the verdict for
// every entry it examined, for diagnostics.
//
// The directory tree is read fresh on every call. Nothing is cached.
package discovery
