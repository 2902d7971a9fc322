// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/algal/ssh-agent-switcher/discovery"
	"github.com/algal/ssh-agent-switcher/lib/cli"
)

func findCommand(stdout io.Writer) *cli.Command {
	var s settings
	return &cli.Command{
		Name:    "find",
		Summary: "Show which agent socket a new connection would use",
		Description: `Scan the agents directory the way serve does for each connection and
print every entry examined with its verdict. Exits with status 1 when no
agent socket accepts a connection.`,
		Flags: func() *pflag.FlagSet {
			flagSet := newFlagSet("find")
			s.addConfigFlag(flagSet)
			s.addDiscoveryFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("no arguments allowed, got %q", args)
			}
			return runFind(&s, stdout)
		},
	}
}

func runFind(s *settings, stdout io.Writer) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}

	candidates := discovery.Scan(cfg.AgentsDir, discoveryOptions(cfg, nil))

	writer := tabwriter.NewWriter(stdout, 2, 0, 2, ' ', 0)
	selected := ""
	for _, candidate := range candidates {
		verdict := "rejected"
		if candidate.Selected {
			verdict = "selected"
			selected = candidate.Path
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", verdict, candidate.Kind, candidate.Path, candidate.Reason)
	}
	writer.Flush()

	if selected == "" {
		fmt.Fprintf(stdout, "no SSH agent socket found in %s\n", cfg.AgentsDir)
		return &cli.ExitError{Code: 1}
	}
	fmt.Fprintf(stdout, "\nSSH_AUTH_SOCK=%s\n", selected)
	return nil
}
