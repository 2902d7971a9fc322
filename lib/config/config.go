// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config file
// path from.
const EnvironmentVariable = "SSH_AGENT_SWITCHER_CONFIG"

// MinBufferSize is the smallest relay buffer accepted. Anything smaller
// would split ordinary agent replies across reads.
const MinBufferSize = 4096

// DefaultBufferSize matches the largest message OpenSSH's agent accepts
// (256 KiB), so every frame fits in one read.
const DefaultBufferSize = 256 * 1024

// Log formats accepted by [LogConfig].Format.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the complete switcher configuration.
type Config struct {
	// SocketPath is the stable socket clients point SSH_AUTH_SOCK at.
	// Default: /tmp/ssh-agent.${USER}
	SocketPath string `yaml:"socket_path" json:"socket_path"`

	// AgentsDir is the directory where sshd creates one session
	// directory per forwarded agent. Default: /tmp
	AgentsDir string `yaml:"agents_dir" json:"agents_dir"`

	// SessionPrefix is the name prefix of session directories.
	// Default: ssh-
	SessionPrefix string `yaml:"session_prefix" json:"session_prefix"`

	// AgentPrefix is the name prefix of agent sockets inside a session
	// directory. Default: agent.
	AgentPrefix string `yaml:"agent_prefix" json:"agent_prefix"`

	// BufferSize is the per-read relay buffer in bytes.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// ConnectTimeout bounds each connect attempt during discovery, as a
	// Go duration string. Empty means no timeout.
	ConnectTimeout string `yaml:"connect_timeout" json:"connect_timeout"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level" json:"level"`

	// Format is auto, text, or json. auto picks text for a terminal
	// and json otherwise. Default: auto
	Format string `yaml:"format" json:"format"`
}

// DefaultSocketPath returns /tmp/ssh-agent.$USER, or "" when USER is
// not set.
func DefaultSocketPath() string {
	user := os.Getenv("USER")
	if user == "" {
		return ""
	}
	return "/tmp/ssh-agent." + user
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		SocketPath:    DefaultSocketPath(),
		AgentsDir:     "/tmp",
		SessionPrefix: "ssh-",
		AgentPrefix:   "agent.",
		BufferSize:    DefaultBufferSize,
		Log: LogConfig{
			Level:  "info",
			Format: FormatAuto,
		},
	}
}

// Load returns the defaults overlaid by the file named in
// SSH_AGENT_SWITCHER_CONFIG. When the variable is unset the defaults are
// returned unchanged.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile returns the defaults overlaid by the file at path. Keys
// absent from the file keep their default values. Files named *.json or
// *.jsonc may carry // and /* */ comments and trailing commas; anything
// else is read as YAML.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
		"USER": os.Getenv("USER"),
	}
	c.SocketPath = expandVars(c.SocketPath, vars)
	c.AgentsDir = expandVars(c.AgentsDir, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path is empty"))
	}
	if c.AgentsDir == "" {
		errs = append(errs, fmt.Errorf("agents_dir is empty"))
	}
	if c.SessionPrefix == "" {
		errs = append(errs, fmt.Errorf("session_prefix is empty"))
	}
	if c.AgentPrefix == "" {
		errs = append(errs, fmt.Errorf("agent_prefix is empty"))
	}
	if c.BufferSize < MinBufferSize {
		errs = append(errs, fmt.Errorf("buffer_size must be at least %d, got %d", MinBufferSize, c.BufferSize))
	}
	if _, err := c.ConnectTimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	formats := []string{FormatAuto, FormatText, FormatJSON}
	if !slices.Contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ConnectTimeoutDuration parses ConnectTimeout. Zero means no timeout.
func (c *Config) ConnectTimeoutDuration() (time.Duration, error) {
	if c.ConnectTimeout == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return 0, fmt.Errorf("connect_timeout: %w", err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("connect_timeout must not be negative, got %s", c.ConnectTimeout)
	}
	return duration, nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
