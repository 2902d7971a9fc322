// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package forward relays one SSH agent conversation between a client
// connection and an agent connection.
//
// The agent protocol is strictly request/response, so [Relay] runs in
// lock-step: one read from the client, forwarded as one write to the
// agent, then one read from the agent, forwarded as one write to the
// client. Each system-level read is delivered as a single write with
// its boundaries intact. Nothing is parsed or reassembled, which is why
// the buffer must hold the largest message either side can send in one
// write ([DefaultBufferSize]).
//
// EOF from either side, or a reset from the client, ends the relay
// normally. A failed write, or a read error other than those, ends it
// with an [*Error] naming the operation. Relay never closes its inputs.
package forward
