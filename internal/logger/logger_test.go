package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitWriterFiltersByLevel(t *testing.T) {
	defer func() { Log = nil }()

	var buf bytes.Buffer
	InitWriter(&buf, "warn", "text")
	Info("hidden")
	Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "key=value") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestInitWriterJSON(t *testing.T) {
	defer func() { Log = nil }()

	var buf bytes.Buffer
	InitWriter(&buf, "debug", "json")
	Debug("hello", "n", 1)
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected JSON output, got %s", buf.String())
	}
}

func TestHelpersWithoutInit(t *testing.T) {
	Log = nil
	// Must not panic.
	Debug("x")
	Info("x")
	Warn("x")
	Error("x")
}
