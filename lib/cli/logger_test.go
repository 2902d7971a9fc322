// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func logTo(t *testing.T, format string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log")
	output, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer output.Close()

	logger, err := NewLogger(output, slog.LevelInfo, format)
	if err != nil {
		t.Fatalf("NewLogger(%q): %v", format, err)
	}
	logger.Debug("hidden")
	logger.Info("listening", "socket_path", "/tmp/s.sock")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(content)
}

func TestNewLogger_AutoPicksJSONForFiles(t *testing.T) {
	line := strings.TrimSpace(logTo(t, "auto"))
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("auto format on a file is not JSON: %q (%v)", line, err)
	}
	if record["msg"] != "listening" || record["socket_path"] != "/tmp/s.sock" {
		t.Errorf("record = %v", record)
	}
}

func TestNewLogger_Text(t *testing.T) {
	output := logTo(t, "text")
	if !strings.Contains(output, "msg=listening") || !strings.Contains(output, "socket_path=/tmp/s.sock") {
		t.Errorf("text output = %q", output)
	}
	if strings.Contains(output, "hidden") {
		t.Errorf("debug record written at info level: %q", output)
	}
}

func TestNewLogger_UnknownFormat(t *testing.T) {
	if _, err := NewLogger(os.Stderr, slog.LevelInfo, "xml"); err == nil {
		t.Fatal("NewLogger(xml) = nil error, want error")
	}
}
