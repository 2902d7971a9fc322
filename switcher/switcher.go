// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package switcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/algal/ssh-agent-switcher/discovery"
	"github.com/algal/ssh-agent-switcher/forward"
	"github.com/algal/ssh-agent-switcher/lib/netutil"
)

// acceptRetryDelay spaces out retries after a failed Accept so that a
// persistent error (EMFILE) does not spin.
const acceptRetryDelay = 100 * time.Millisecond

// Switcher proxies connections on SocketPath to a discovered SSH agent.
type Switcher struct {
	// SocketPath is the stable socket clients connect to.
	SocketPath string

	// AgentsDir is the directory scanned for session directories on
	// every connection.
	AgentsDir string

	// Discovery tunes candidate selection. A nil Logger is replaced by
	// the per-connection logger.
	Discovery discovery.Options

	// BufferSize is the relay buffer size. Zero means
	// forward.DefaultBufferSize.
	BufferSize int

	// Logger receives structured log output. If nil, slog.Default() is
	// used. Per-connection events are logged at Debug level; dropped
	// connections at Info and Warn; lifecycle events at Info.
	Logger *slog.Logger

	listener *net.UnixListener
	socketID fileID
	cancel   context.CancelFunc
	done     chan struct{}
	active   atomic.Int64
}

func (s *Switcher) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Start binds SocketPath and begins accepting connections. It returns
// once the socket is listening, or an error if binding fails. The
// switcher runs until Stop is called or ctx is cancelled.
func (s *Switcher) Start(ctx context.Context) error {
	if s.SocketPath == "" {
		return fmt.Errorf("switcher: SocketPath is required")
	}
	if s.AgentsDir == "" {
		return fmt.Errorf("switcher: AgentsDir is required")
	}
	if s.done != nil {
		return fmt.Errorf("switcher: already started")
	}

	listener, id, err := listen(s.SocketPath)
	if err != nil {
		return fmt.Errorf("switcher: %w", err)
	}
	s.listener = listener
	s.socketID = id

	ctx, s.cancel = context.WithCancel(ctx)
	context.AfterFunc(ctx, func() { listener.Close() })
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		defer s.release()
		s.acceptLoop(ctx)
	}()

	s.logger().Info("listening",
		"socket_path", s.SocketPath,
		"agents_dir", s.AgentsDir,
	)
	return nil
}

// Addr returns the listener's address, or nil before Start.
func (s *Switcher) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Active returns the number of connections currently being handled.
func (s *Switcher) Active() int64 {
	return s.active.Load()
}

// Stop closes the listener, removes the socket file, and waits for the
// accept loop to exit. It does not wait for in-flight connections.
// Calling Stop more than once, or before Start, is safe.
func (s *Switcher) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.Wait()
}

// Wait blocks until the accept loop has exited and the socket file has
// been removed.
func (s *Switcher) Wait() {
	if s.done != nil {
		<-s.done
	}
}

// release closes the listener and removes the socket file. It runs on
// every exit path of the accept loop.
func (s *Switcher) release() {
	s.listener.Close()

	removed, err := removeSocket(s.SocketPath, s.socketID)
	switch {
	case err != nil:
		s.logger().Error("removing socket failed", "socket_path", s.SocketPath, "error", err)
	case removed:
		s.logger().Info("shut down and deleted socket",
			"socket_path", s.SocketPath,
			"active_connections", s.active.Load(),
		)
	default:
		s.logger().Warn("socket path no longer holds our socket, leaving it",
			"socket_path", s.SocketPath,
		)
	}
}

// acceptLoop hands every accepted connection to its own goroutine. It
// blocks only in Accept.
func (s *Switcher) acceptLoop(ctx context.Context) {
	var connectionCount int64

	for {
		connection, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger().Error("accept failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		connectionCount++
		connectionID := connectionCount
		s.active.Add(1)
		go func() {
			defer s.active.Add(-1)
			s.handleConnection(connection, connectionID)
		}()
	}
}

func (s *Switcher) handleConnection(client net.Conn, connectionID int64) {
	defer client.Close()

	logger := s.logger().With("connection_id", connectionID)
	logger.Debug("accepted client connection")

	options := s.Discovery
	if options.Logger == nil {
		options.Logger = logger
	}
	agentConnection, err := discovery.FindAgent(s.AgentsDir, options)
	if err != nil {
		logger.Info("dropping connection: agent not found", "agents_dir", s.AgentsDir)
		return
	}
	defer agentConnection.Close()

	stats, err := forward.Relay(client, agentConnection, s.BufferSize)
	if err != nil {
		attributes := []any{"agent", agentConnection.RemoteAddr().String(), "error", err}
		var forwardError *forward.Error
		if errors.As(err, &forwardError) {
			attributes = append(attributes, "op", string(forwardError.Op))
		}
		// The agent or client disappearing mid-exchange (session closed,
		// ssh-add killed) is routine.
		if netutil.IsExpectedCloseError(err) {
			logger.Debug("dropping connection: peer closed", attributes...)
			return
		}
		logger.Warn("dropping connection", attributes...)
		return
	}

	logger.Debug("closing client connection",
		"agent", agentConnection.RemoteAddr().String(),
		"exchanges", stats.Exchanges,
		"client_bytes", stats.ClientBytes,
		"agent_bytes", stats.AgentBytes,
	)
}
