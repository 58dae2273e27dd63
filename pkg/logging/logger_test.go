package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"warning alias", "WARNING", slog.LevelWarn},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}
	if logger == Default() {
		t.Error("Default() returned the same instance twice")
	}
}

func TestWithComponentTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).WithComponent("webhook")
	logger.Info("received", "event_id", "evt-1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["component"] != "webhook" {
		t.Fatalf("expected component=webhook, got %v", record["component"])
	}
	if record["event_id"] != "evt-1" {
		t.Fatalf("expected event_id attribute, got %v", record["event_id"])
	}
}

func TestNilLoggerHelpers(t *testing.T) {
	var l *Logger
	if l.WithComponent("x") == nil {
		t.Fatal("expected non-nil child from nil logger")
	}
	if l.With("k", "v") == nil {
		t.Fatal("expected non-nil child from nil logger")
	}
}
