// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/algal/ssh-agent-switcher/lib/cli"
	"github.com/algal/ssh-agent-switcher/lib/config"
	"github.com/algal/ssh-agent-switcher/lib/testutil"
)

// isolateConfig keeps the caller's environment from leaking into
// configuration defaults.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvironmentVariable, "")
	t.Setenv("USER", "switcher-test")
}

// forwardedAgent starts an agent at <root>/ssh-<session>/agent.<pid>.
func forwardedAgent(t *testing.T, root, session string) *testutil.TestAgent {
	t.Helper()
	directory := filepath.Join(root, "ssh-"+session)
	if err := os.Mkdir(directory, 0o700); err != nil {
		t.Fatalf("creating session directory: %v", err)
	}
	return testutil.StartAgent(t, filepath.Join(directory, "agent.1000"), "test@"+session)
}

func exitCode(err error) int {
	var exitError *cli.ExitError
	if errors.As(err, &exitError) {
		return exitError.ExitCode()
	}
	return -1
}

func TestLegacyFlagNames(t *testing.T) {
	var s settings
	flagSet := newFlagSet("serve")
	s.addSocketFlag(flagSet)
	s.addDiscoveryFlags(flagSet)

	if err := flagSet.Parse([]string{"--socketPath", "/tmp/custom.sock", "--agentsDir=/var/agents"}); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if s.socketPath != "/tmp/custom.sock" {
		t.Errorf("socketPath = %q, want /tmp/custom.sock", s.socketPath)
	}
	if s.agentsDir != "/var/agents" {
		t.Errorf("agentsDir = %q, want /var/agents", s.agentsDir)
	}
}

func TestServe_RejectsPositionalArgs(t *testing.T) {
	isolateConfig(t)

	for _, args := range [][]string{{"extra"}, {"serve", "extra"}, {"--agents-dir", "/tmp", "extra"}} {
		err := rootCommand(io.Discard).Execute(args)
		if err == nil || !strings.Contains(err.Error(), "no arguments allowed") {
			t.Errorf("Execute(%q) = %v, want 'no arguments allowed'", args, err)
		}
	}
}

func TestSettingsLoad_FlagsOverrideConfig(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "switcher.yaml")
	content := "socket_path: /tmp/from-file.sock\nagents_dir: /srv/agents\nbuffer_size: 8192\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	s := settings{configPath: path, agentsDir: "/from/flag", verbose: true}
	cfg, err := s.load()
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if cfg.SocketPath != "/tmp/from-file.sock" {
		t.Errorf("SocketPath = %q, want value from file", cfg.SocketPath)
	}
	if cfg.AgentsDir != "/from/flag" {
		t.Errorf("AgentsDir = %q, want value from flag", cfg.AgentsDir)
	}
	if cfg.BufferSize != 8192 {
		t.Errorf("BufferSize = %d, want 8192", cfg.BufferSize)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug from --verbose", cfg.Log.Level)
	}
}

func TestSettingsLoad_ConfigFromEnvironment(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "switcher.yaml")
	if err := os.WriteFile(path, []byte("agents_dir: /srv/agents\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv(config.EnvironmentVariable, path)

	var s settings
	cfg, err := s.load()
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if cfg.AgentsDir != "/srv/agents" {
		t.Errorf("AgentsDir = %q, want /srv/agents", cfg.AgentsDir)
	}
	if cfg.SocketPath != "/tmp/ssh-agent.switcher-test" {
		t.Errorf("SocketPath = %q, want default for USER", cfg.SocketPath)
	}
}

func TestSettingsLoad_Invalid(t *testing.T) {
	isolateConfig(t)

	s := settings{bufferSize: 16}
	if _, err := s.load(); err == nil || !strings.Contains(err.Error(), "buffer_size") {
		t.Errorf("load() = %v, want buffer_size error", err)
	}

	t.Setenv("USER", "")
	var noUser settings
	if _, err := noUser.load(); err == nil || !strings.Contains(err.Error(), "socket_path") {
		t.Errorf("load() without USER = %v, want socket_path error", err)
	}
}

func TestFind_SelectsForwardedAgent(t *testing.T) {
	isolateConfig(t)
	root := testutil.SocketDir(t)
	if err := os.Mkdir(filepath.Join(root, "ssh-empty"), 0o700); err != nil {
		t.Fatal(err)
	}
	testAgent := forwardedAgent(t, root, "live")

	var output bytes.Buffer
	if err := rootCommand(&output).Execute([]string{"find", "--agents-dir", root}); err != nil {
		t.Fatalf("find error: %v\n%s", err, output.String())
	}

	text := output.String()
	if !strings.Contains(text, "no socket in directory") {
		t.Errorf("output missing verdict for empty session:\n%s", text)
	}
	if !strings.Contains(text, "SSH_AUTH_SOCK="+testAgent.Path) {
		t.Errorf("output missing selected socket %s:\n%s", testAgent.Path, text)
	}
}

func TestFind_NothingFound(t *testing.T) {
	isolateConfig(t)
	root := testutil.SocketDir(t)

	var output bytes.Buffer
	err := rootCommand(&output).Execute([]string{"find", "--agents-dir", root})
	if exitCode(err) != 1 {
		t.Fatalf("find error = %v, want ExitError code 1", err)
	}
	if !strings.Contains(output.String(), "no SSH agent socket found") {
		t.Errorf("output = %q", output.String())
	}
}

func TestServeAndCheck(t *testing.T) {
	isolateConfig(t)
	root := testutil.SocketDir(t)
	testAgent := forwardedAgent(t, root, "live")
	socketPath := filepath.Join(root, "switcher.sock")

	cfg := config.Default()
	cfg.SocketPath = socketPath
	cfg.AgentsDir = root
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- serve(ctx, cfg, logger) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("switcher socket never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var output bytes.Buffer
	if err := rootCommand(&output).Execute([]string{"check", "--socket-path", socketPath}); err != nil {
		t.Fatalf("check error: %v", err)
	}
	want := ssh.FingerprintSHA256(testAgent.PublicKey) + " test@live (ssh-ed25519)"
	if !strings.Contains(output.String(), want) {
		t.Errorf("check output = %q, want line %q", output.String(), want)
	}

	cancel()
	if err := testutil.RequireReceive(t, served, 5*time.Second, "waiting for serve to return"); err != nil {
		t.Fatalf("serve() error: %v", err)
	}
	if _, err := os.Lstat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after shutdown: %v", err)
	}
}

func TestServe_StartFailure(t *testing.T) {
	isolateConfig(t)
	root := testutil.SocketDir(t)
	socketPath := filepath.Join(root, "not-a-socket")
	if err := os.WriteFile(socketPath, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.SocketPath = socketPath
	cfg.AgentsDir = root
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := serve(context.Background(), cfg, logger); err == nil {
		t.Fatal("serve() = nil, want error for non-socket file at socket path")
	}
}

func TestCheck_NoSwitcher(t *testing.T) {
	isolateConfig(t)
	socketPath := filepath.Join(testutil.SocketDir(t), "absent.sock")

	err := rootCommand(io.Discard).Execute([]string{"check", "--socket-path", socketPath})
	if err == nil || !strings.Contains(err.Error(), "connecting to switcher") {
		t.Errorf("check error = %v, want connection failure", err)
	}
}

func TestCheck_SwitcherWithoutAgent(t *testing.T) {
	isolateConfig(t)
	root := testutil.SocketDir(t)
	socketPath := filepath.Join(root, "dropping.sock")
	// A switcher that finds no agent accepts and then closes.
	testutil.ListenUnix(t, socketPath)

	err := rootCommand(io.Discard).Execute([]string{"check", "--socket-path", socketPath})
	if err == nil || !strings.Contains(err.Error(), "listing keys") {
		t.Errorf("check error = %v, want listing failure", err)
	}
}

func TestVersionOutput(t *testing.T) {
	for _, args := range [][]string{{"version"}, {"--version"}} {
		var output bytes.Buffer
		if err := rootCommand(&output).Execute(args); err != nil {
			t.Fatalf("Execute(%q) error: %v", args, err)
		}
		if !strings.HasPrefix(output.String(), "ssh-agent-switcher ") {
			t.Errorf("Execute(%q) output = %q", args, output.String())
		}
	}
}

func TestHelpListsCommands(t *testing.T) {
	var help bytes.Buffer
	root := rootCommand(io.Discard)
	root.HelpOutput = &help

	if err := root.Execute([]string{"--help"}); err != nil {
		t.Fatalf("Execute(--help) error: %v", err)
	}
	for _, name := range []string{"serve", "find", "check", "version", "--socket-path", "--agents-dir"} {
		if !strings.Contains(help.String(), name) {
			t.Errorf("help output missing %q:\n%s", name, help.String())
		}
	}
}
