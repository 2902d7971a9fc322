// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the switcher packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix domain sockets have a 108-byte path limit
// (sun_path in sockaddr_un) and t.TempDir() paths for long test names
// exceed it easily.
//
// [StartAgent] serves an in-memory SSH agent keyring on a Unix socket so
// that tests can talk the real agent protocol through the relay.
// [ListenUnix] binds a bare listener for tests that only need something
// connectable.
//
// [RequireReceive] and [RequireClosed] encapsulate the select with
// time.After fallback so that a broken relay fails the test instead of
// hanging it.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
