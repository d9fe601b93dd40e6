package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, zapcore.DebugLevel).With("component", "packaging")

	l.Info("package built", map[string]any{"files": 3})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	entry := lines[0]
	if entry["message"] != "package built" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["component"] != "packaging" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["files"] != float64(3) {
		t.Errorf("files = %v", entry["files"])
	}
}

func TestLogger_ErrorFieldKeepsMessage(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, zapcore.DebugLevel)

	l.Warn("skipping entry", map[string]any{"error": errors.New("permission denied")})

	lines := decodeLines(t, &buf)
	if lines[0]["error"] != "permission denied" {
		t.Errorf("error = %v", lines[0]["error"])
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, zapcore.WarnLevel)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Error("shown", nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["message"] != "shown" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestLogger_NilSafe(_ *testing.T) {
	var l *Logger
	l.Debug("x", nil)
	l.Info("x", nil)
	l.Warn("x", nil)
	l.Error("x", nil)
	_ = l.With("k", "v")
	_ = l.Sync()
	l.Sugar().Infof("x %d", 1)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"trace", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
