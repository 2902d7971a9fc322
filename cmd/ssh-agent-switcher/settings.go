// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/algal/ssh-agent-switcher/discovery"
	"github.com/algal/ssh-agent-switcher/lib/cli"
	"github.com/algal/ssh-agent-switcher/lib/config"
)

// settings holds command-line overrides. Zero values mean "not given",
// so the config file (or the built-in defaults) decides.
type settings struct {
	configPath string
	socketPath string
	agentsDir  string
	bufferSize int
	verbose    bool
	logFormat  string
}

// legacyFlagNames maps the camelCase spellings accepted by earlier
// releases to the current flag names.
var legacyFlagNames = map[string]string{
	"socketPath": "socket-path",
	"agentsDir":  "agents-dir",
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if renamed, ok := legacyFlagNames[name]; ok {
		name = renamed
	}
	return pflag.NormalizedName(name)
}

func newFlagSet(name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetNormalizeFunc(normalizeFlagName)
	return flagSet
}

func (s *settings) addConfigFlag(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&s.configPath, "config", "",
		"YAML config file (default: $"+config.EnvironmentVariable+")")
}

func (s *settings) addSocketFlag(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&s.socketPath, "socket-path", "",
		"path to the socket to listen on (default: /tmp/ssh-agent.$USER)")
}

func (s *settings) addDiscoveryFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&s.agentsDir, "agents-dir", "",
		"directory where sshd creates agent sockets (default: /tmp)")
}

func (s *settings) addLogFlags(flagSet *pflag.FlagSet) {
	flagSet.BoolVarP(&s.verbose, "verbose", "v", false, "log per-connection and per-candidate details")
	flagSet.StringVar(&s.logFormat, "log-format", "", "log format: auto, text, or json")
}

// load reads the config file, applies flag overrides, and validates the
// result.
func (s *settings) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if s.configPath != "" {
		cfg, err = config.LoadFile(s.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if s.socketPath != "" {
		cfg.SocketPath = s.socketPath
	}
	if s.agentsDir != "" {
		cfg.AgentsDir = s.agentsDir
	}
	if s.bufferSize != 0 {
		cfg.BufferSize = s.bufferSize
	}
	if s.verbose {
		cfg.Log.Level = "debug"
	}
	if s.logFormat != "" {
		cfg.Log.Format = s.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger described by cfg.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	return cli.NewLogger(os.Stderr, level, cfg.Log.Format)
}

func discoveryOptions(cfg *config.Config, logger *slog.Logger) discovery.Options {
	// Validate has already accepted the timeout.
	timeout, _ := cfg.ConnectTimeoutDuration()
	return discovery.Options{
		SessionPrefix:  cfg.SessionPrefix,
		AgentPrefix:    cfg.AgentPrefix,
		ConnectTimeout: timeout,
		Logger:         logger,
	}
}
