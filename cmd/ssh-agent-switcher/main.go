// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/algal/ssh-agent-switcher/lib/cli"
	"github.com/algal/ssh-agent-switcher/lib/version"
)

func main() {
	if err := run(); err != nil {
		// Commands that already reported their outcome (find with no
		// match, serve after a signal) return an ExitError.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand(os.Stdout).Execute(os.Args[1:])
}

// rootCommand builds the command tree. Command output goes to stdout;
// logs always go to stderr.
func rootCommand(stdout io.Writer) *cli.Command {
	serveCmd := serveCommand()

	var showVersion bool
	root := &cli.Command{
		Name: "ssh-agent-switcher",
		Description: `ssh-agent-switcher: a stable socket for forwarded SSH agents.

Listens on a fixed Unix socket and proxies each connection to the live
agent socket sshd forwarded for the current user, so SSH_AUTH_SOCK can
stay the same across SSH sessions. Without a command, runs serve.`,
		Flags: func() *pflag.FlagSet {
			flagSet := serveCmd.Flags()
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Run: func(args []string) error {
			if showVersion {
				fmt.Fprintf(stdout, "ssh-agent-switcher %s\n", version.Info())
				return nil
			}
			return serveCmd.Run(args)
		},
		Subcommands: []*cli.Command{
			serveCmd,
			findCommand(stdout),
			checkCommand(stdout),
			versionCommand(stdout),
		},
		Examples: []cli.Example{
			{
				Description: "Run on the default socket and point SSH_AUTH_SOCK at it",
				Command:     `ssh-agent-switcher & export SSH_AUTH_SOCK=/tmp/ssh-agent.$USER`,
			},
			{
				Description: "See which forwarded agent a new connection would reach",
				Command:     "ssh-agent-switcher find --verbose",
			},
		},
	}
	return root
}

func versionCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("version takes no arguments")
			}
			fmt.Fprintf(stdout, "ssh-agent-switcher %s\n", version.Full())
			return nil
		},
	}
}
