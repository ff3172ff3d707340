package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"  WARN ": slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewJSONLoggerCarriesServiceAttr(t *testing.T) {
	logger := NewJSONLogger("api", "debug")
	if logger == nil {
		t.Fatalf("expected a logger")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("debug level must be enabled")
	}
	quiet := NewJSONLogger("api", "error")
	if quiet.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info must be disabled at error level")
	}
}
