// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// TestAgent is an in-memory SSH agent served on a Unix socket.
type TestAgent struct {
	// Path is the socket the agent listens on.
	Path string

	// Keyring is the agent's backing store. Tests may add or remove
	// keys while the agent is serving.
	Keyring agent.Agent

	// PublicKey is the key loaded at start, with Comment as its comment.
	PublicKey ssh.PublicKey
	Comment   string

	listener net.Listener
}

// Close stops accepting connections and removes the socket file, the
// way an agent disappears when its SSH session ends. Connections
// already accepted keep being served.
func (a *TestAgent) Close() {
	a.listener.Close()
}

// StartAgent serves a keyring holding one freshly generated ed25519 key
// on a Unix socket at path. Each connection is served by
// agent.ServeAgent in its own goroutine, with replies emitted as one
// write per message the way OpenSSH's ssh-agent sends them. The
// listener is closed when the test completes.
func StartAgent(t *testing.T, path, comment string) *TestAgent {
	t.Helper()

	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	keyring := agent.NewKeyring()
	if err := keyring.Add(agent.AddedKey{PrivateKey: privateKey, Comment: comment}); err != nil {
		t.Fatalf("adding key to keyring: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(privateKey)
	if err != nil {
		t.Fatalf("creating signer: %v", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listening on %s: %v", path, err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			connection, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer connection.Close()
				_ = agent.ServeAgent(keyring, &frameWriter{ReadWriter: connection})
			}()
		}
	}()

	return &TestAgent{
		Path:      path,
		Keyring:   keyring,
		PublicKey: signer.PublicKey(),
		Comment:   comment,
		listener:  listener,
	}
}

// frameWriter holds back writes until a complete length-prefixed agent
// message is buffered and then writes it in one call. agent.ServeAgent
// writes the length and the body separately.
type frameWriter struct {
	io.ReadWriter
	pending []byte
}

func (w *frameWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for len(w.pending) >= 4 {
		size := 4 + int(binary.BigEndian.Uint32(w.pending))
		if len(w.pending) < size {
			break
		}
		if _, err := w.ReadWriter.Write(w.pending[:size]); err != nil {
			return 0, err
		}
		w.pending = w.pending[size:]
	}
	return len(p), nil
}
