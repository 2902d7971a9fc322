// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/algal/ssh-agent-switcher/lib/cli"
	"github.com/algal/ssh-agent-switcher/lib/config"
	"github.com/algal/ssh-agent-switcher/switcher"
)

func serveCommand() *cli.Command {
	var s settings
	return &cli.Command{
		Name:    "serve",
		Summary: "Listen on the stable socket and proxy to the live agent",
		Description: `Listen on the stable socket and proxy every connection to the SSH
agent socket currently forwarded for this user.

The socket is created with mode 0600 and removed on SIGINT or SIGTERM,
after which the process exits with status 1. SIGHUP is ignored so the
switcher survives the end of the session that started it.`,
		Flags: func() *pflag.FlagSet {
			flagSet := newFlagSet("serve")
			s.addConfigFlag(flagSet)
			s.addSocketFlag(flagSet)
			s.addDiscoveryFlags(flagSet)
			flagSet.IntVar(&s.bufferSize, "buffer-size", 0,
				fmt.Sprintf("relay buffer size in bytes (default: %d)", config.DefaultBufferSize))
			s.addLogFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("no arguments allowed, got %q", args)
			}
			return runServe(&s)
		},
	}
}

func runServe(s *settings) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	signal.Ignore(syscall.SIGHUP)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		return err
	}
	return &cli.ExitError{Code: 1}
}

// serve runs a switcher for cfg until ctx is cancelled. The socket file
// is gone by the time serve returns.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	s := &switcher.Switcher{
		SocketPath: cfg.SocketPath,
		AgentsDir:  cfg.AgentsDir,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	}
	// Discovery logs through the per-connection logger.
	s.Discovery = discoveryOptions(cfg, nil)

	if err := s.Start(ctx); err != nil {
		return err
	}
	logger.Info("ssh-agent-switcher started",
		"pid", os.Getpid(),
		"buffer_size", cfg.BufferSize,
	)

	<-ctx.Done()
	logger.Info("shutting down", "reason", context.Cause(ctx))
	s.Stop()
	return nil
}
