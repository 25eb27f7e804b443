package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"echorank.dev/attest/config"
)

func TestNew_JSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := newLogger(config.Log{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("attestation signed", zap.String("audio_hash", "abcd"))
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above the level threshold, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "attestation signed" || entry["audio_hash"] != "abcd" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNew_RotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "attestd.log")
	logger, closeFn, err := New(config.Log{Level: "debug", Format: "console", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("written to file")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Fatalf("log file missing entry: %q", data)
	}
}

func TestNew_RejectsBadLevelAndFormat(t *testing.T) {
	if _, _, err := New(config.Log{Level: "loud", Format: "json"}); err == nil {
		t.Fatalf("expected bad level to fail")
	}
	if _, _, err := New(config.Log{Level: "info", Format: "xml"}); err == nil {
		t.Fatalf("expected bad format to fail")
	}
}
