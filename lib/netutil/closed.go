// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies the errors a Unix socket connection produces
// when the peer goes away.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsPeerReset reports whether err is a "connection reset by peer"
// condition. SSH clients that exit without shutting down their socket
// produce ECONNRESET on the relay's next read.
func IsPeerReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET)
}

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, use of a closed connection, broken pipe, or
// connection reset. These are the shapes a conversation takes when one
// side hangs up and should not be logged as errors.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
