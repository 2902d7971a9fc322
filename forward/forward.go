// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package forward

import (
	"errors"
	"fmt"
	"io"

	"github.com/algal/ssh-agent-switcher/lib/netutil"
)

// DefaultBufferSize is the largest message OpenSSH's agent accepts
// (256 KiB).
const DefaultBufferSize = 256 * 1024

// Op names the relay step that failed.
type Op string

const (
	ReadClient  Op = "read from client"
	WriteAgent  Op = "write to agent"
	ReadAgent   Op = "read from agent"
	WriteClient Op = "write to client"
)

// Error reports a forwarding failure and the step it happened in.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Stats describes a finished relay.
type Stats struct {
	// Exchanges counts completed request/response round trips.
	Exchanges int

	// ClientBytes and AgentBytes count bytes forwarded from each side.
	ClientBytes int64
	AgentBytes  int64
}

// Relay forwards requests from client to agent and responses from agent
// to client until either side hangs up. It returns nil for a normal end
// of conversation and an *Error otherwise. A bufferSize below 1 means
// DefaultBufferSize.
func Relay(client, agent io.ReadWriter, bufferSize int) (Stats, error) {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	buffer := make([]byte, bufferSize)

	var stats Stats
	for {
		// A read returning data together with an error forwards the
		// data; the error comes back on the next read.
		n, err := client.Read(buffer)
		if n == 0 {
			if err == nil || errors.Is(err, io.EOF) || netutil.IsPeerReset(err) {
				return stats, nil
			}
			return stats, &Error{Op: ReadClient, Err: err}
		}
		if err := writeChunk(agent, buffer[:n]); err != nil {
			return stats, &Error{Op: WriteAgent, Err: err}
		}
		stats.ClientBytes += int64(n)

		n, err = agent.Read(buffer)
		if n == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				return stats, nil
			}
			return stats, &Error{Op: ReadAgent, Err: err}
		}
		if err := writeChunk(client, buffer[:n]); err != nil {
			return stats, &Error{Op: WriteClient, Err: err}
		}
		stats.AgentBytes += int64(n)
		stats.Exchanges++
	}
}

// writeChunk writes chunk with a single call.
func writeChunk(w io.Writer, chunk []byte) error {
	written, err := w.Write(chunk)
	if err != nil {
		return err
	}
	if written != len(chunk) {
		return io.ErrShortWrite
	}
	return nil
}
