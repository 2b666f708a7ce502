package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn)
	logger.SetOutput(&buf)

	logger.Info("hidden", nil)
	logger.Warn("shown", map[string]interface{}{"symbol": "MBEDTLS_X"})

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != "WARN" || entries[0].Message != "shown" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].Fields["symbol"] != "MBEDTLS_X" {
		t.Fatalf("expected symbol field, got %+v", entries[0].Fields)
	}
}

func TestLogWrite(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelDebug)
	logger.SetOutput(&buf)

	logger.LogWrite("/a.h", true, nil)
	logger.LogWrite("/b.h", false, nil)
	logger.LogWrite("/c.h", false, errors.New("permission denied"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Level != "INFO" || entries[1].Level != "DEBUG" || entries[2].Level != "ERROR" {
		t.Fatalf("unexpected levels: %s %s %s", entries[0].Level, entries[1].Level, entries[2].Level)
	}
	if entries[2].Fields["error"] != "permission denied" {
		t.Fatalf("expected error field, got %+v", entries[2].Fields)
	}
}

func TestLogConfigLoad(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo)
	logger.SetOutput(&buf)

	logger.LogConfigLoad(true, "/config.h", 12, nil)
	logger.LogConfigLoad(false, "/missing.h", 0, errors.New("not found"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Fields["settings"] != float64(12) {
		t.Fatalf("expected settings count, got %+v", entries[0].Fields)
	}
	if entries[1].Level != "ERROR" {
		t.Fatalf("expected ERROR, got %s", entries[1].Level)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if LevelWarn.String() != "WARN" {
		t.Fatalf("expected WARN, got %q", LevelWarn.String())
	}
	if Level(42).String() != "Level(42)" {
		t.Fatalf("unexpected name for unknown level: %q", Level(42).String())
	}
}
