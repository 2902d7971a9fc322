// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"net"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/algal/ssh-agent-switcher/lib/cli"
)

func checkCommand(stdout io.Writer) *cli.Command {
	var s settings
	return &cli.Command{
		Name:    "check",
		Summary: "List the keys reachable through a running switcher",
		Description: `Connect to the switcher socket, request the identity list, and print
each key's SHA256 fingerprint and comment, like ssh-add -l. Fails when
the switcher is not running or found no agent to proxy to.`,
		Flags: func() *pflag.FlagSet {
			flagSet := newFlagSet("check")
			s.addConfigFlag(flagSet)
			s.addSocketFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("no arguments allowed, got %q", args)
			}
			return runCheck(&s, stdout)
		},
	}
}

func runCheck(s *settings, stdout io.Writer) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}

	connection, err := net.Dial("unix", cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("connecting to switcher at %s: %w", cfg.SocketPath, err)
	}
	defer connection.Close()

	keys, err := agent.NewClient(connection).List()
	if err != nil {
		return fmt.Errorf("listing keys through %s (is a forwarded agent available?): %w", cfg.SocketPath, err)
	}

	if len(keys) == 0 {
		fmt.Fprintf(stdout, "the agent behind %s has no identities\n", cfg.SocketPath)
		return nil
	}
	for _, key := range keys {
		fmt.Fprintf(stdout, "%s %s (%s)\n", ssh.FingerprintSHA256(key), key.Comment, key.Type())
	}
	return nil
}
