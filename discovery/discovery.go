// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// ErrNotFound is returned by FindAgent when no eligible agent socket
// accepted a connection.
var ErrNotFound = errors.New("no SSH agent socket found")

// Name prefixes sshd uses for session directories and agent sockets.
const (
	DefaultSessionPrefix = "ssh-"
	DefaultAgentPrefix   = "agent."
)

// Options controls candidate selection. The zero value matches sshd's
// naming and the process's effective user.
type Options struct {
	// SessionPrefix is the required name prefix of session
	// directories. Empty means DefaultSessionPrefix.
	SessionPrefix string

	// AgentPrefix is the required name prefix of agent sockets.
	// Empty means DefaultAgentPrefix.
	AgentPrefix string

	// UID is the owner session directories must have. Nil means the
	// effective user id of this process.
	UID *int

	// ConnectTimeout bounds each connect attempt made by the default
	// dialer. Zero means no timeout.
	ConnectTimeout time.Duration

	// Dial opens a connection to the socket at path. Nil means a
	// net.Dialer on the "unix" network.
	Dial func(path string) (net.Conn, error)

	// Logger receives one Debug record per rejected or selected
	// candidate. Nil means slog.Default().
	Logger *slog.Logger
}

// Kind identifies what level of the tree a Candidate sits at.
type Kind string

const (
	KindRoot    Kind = "root"
	KindSession Kind = "session"
	KindAgent   Kind = "agent"
)

// Candidate is one examined filesystem entry and its verdict.
type Candidate struct {
	Path string
	Kind Kind

	// Selected is true for the socket FindAgent would return.
	Selected bool

	// Reason explains a rejection. Empty when Selected.
	Reason string
}

// FindAgent returns a connection to the first live agent socket under
// root, or ErrNotFound. The caller owns the returned connection.
func FindAgent(root string, options Options) (net.Conn, error) {
	f := newFinder(options)
	logger := f.logger.With("agents_dir", root)

	connection := f.find(root, func(candidate Candidate) {
		if candidate.Selected {
			logger.Debug("opened SSH agent", "path", candidate.Path)
			return
		}
		logger.Debug("ignoring candidate",
			"path", candidate.Path,
			"kind", candidate.Kind,
			"reason", candidate.Reason,
		)
	})
	if connection == nil {
		return nil, ErrNotFound
	}
	return connection, nil
}

// Scan examines root exactly as FindAgent does and returns every
// verdict in the order reached. Like FindAgent it stops at the first
// socket that accepts a connection; that probe connection is closed
// before Scan returns.
func Scan(root string, options Options) []Candidate {
	f := newFinder(options)

	var candidates []Candidate
	connection := f.find(root, func(candidate Candidate) {
		candidates = append(candidates, candidate)
	})
	if connection != nil {
		connection.Close()
	}
	return candidates
}

type finder struct {
	sessionPrefix string
	agentPrefix   string
	uid           int
	dial          func(path string) (net.Conn, error)
	logger        *slog.Logger
}

func newFinder(options Options) *finder {
	f := &finder{
		sessionPrefix: options.SessionPrefix,
		agentPrefix:   options.AgentPrefix,
		dial:          options.Dial,
		logger:        options.Logger,
	}
	if f.sessionPrefix == "" {
		f.sessionPrefix = DefaultSessionPrefix
	}
	if f.agentPrefix == "" {
		f.agentPrefix = DefaultAgentPrefix
	}
	if options.UID != nil {
		f.uid = *options.UID
	} else {
		f.uid = unix.Geteuid()
	}
	if f.dial == nil {
		dialer := &net.Dialer{Timeout: options.ConnectTimeout}
		f.dial = func(path string) (net.Conn, error) {
			return dialer.Dial("unix", path)
		}
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// find walks root and returns the first agent connection, reporting
// each verdict to visit. A nil result means nothing connected.
func (f *finder) find(root string, visit func(Candidate)) net.Conn {
	names, err := listNames(root)
	if err != nil {
		visit(Candidate{Path: root, Kind: KindRoot, Reason: "list failed: " + err.Error()})
		return nil
	}

	for _, name := range names {
		path := filepath.Join(root, name)
		if reason := f.checkSession(name, path); reason != "" {
			visit(Candidate{Path: path, Kind: KindSession, Reason: reason})
			continue
		}

		if connection := f.findInSession(path, visit); connection != nil {
			return connection
		}
		visit(Candidate{Path: path, Kind: KindSession, Reason: "no socket in directory"})
	}
	return nil
}

// findInSession tries every agent candidate in one session directory.
func (f *finder) findInSession(directory string, visit func(Candidate)) net.Conn {
	names, err := listNames(directory)
	if err != nil {
		visit(Candidate{Path: directory, Kind: KindSession, Reason: "list failed: " + err.Error()})
		return nil
	}

	for _, name := range names {
		path := filepath.Join(directory, name)
		if reason := f.checkAgent(name, path); reason != "" {
			visit(Candidate{Path: path, Kind: KindAgent, Reason: reason})
			continue
		}

		connection, err := f.dial(path)
		if err != nil {
			visit(Candidate{Path: path, Kind: KindAgent, Reason: "open failed: " + err.Error()})
			continue
		}
		visit(Candidate{Path: path, Kind: KindAgent, Selected: true})
		return connection
	}
	return nil
}

// checkSession returns why the entry cannot be a session directory, or
// "" if it is eligible. The name test runs first since it needs no
// system call.
func (f *finder) checkSession(name, path string) string {
	if !strings.HasPrefix(name, f.sessionPrefix) {
		return fmt.Sprintf("does not start with %q", f.sessionPrefix)
	}

	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return "stat failed: " + err.Error()
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFDIR {
		return "not a directory"
	}
	if int(stat.Uid) != f.uid {
		return fmt.Sprintf("owner %d is not current user %d", stat.Uid, f.uid)
	}
	return ""
}

// checkAgent returns why the entry cannot be an agent socket, or "" if
// a connect should be attempted.
func (f *finder) checkAgent(name, path string) string {
	if !strings.HasPrefix(name, f.agentPrefix) {
		return fmt.Sprintf("does not start with %q", f.agentPrefix)
	}

	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return "stat failed: " + err.Error()
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFSOCK {
		return "not a socket"
	}
	return ""
}

// listNames returns the entry names of directory in lexicographic order.
func listNames(directory string) ([]string, error) {
	file, err := os.Open(directory)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	names, err := file.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}
