package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/ruler/pkg/config"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format   string
		wantJSON bool
		wantTime bool
	}{
		{"json", true, true},
		{"", true, true},
		{"text", false, true},
		{"console", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(config.LoggingConfig{Level: "info", Format: tt.format}, &buf)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			logger.Info("hello", "key", "value")
			out := buf.String()

			isJSON := json.Valid(bytes.TrimSpace(buf.Bytes()))
			if isJSON != tt.wantJSON {
				t.Errorf("JSON output = %v, want %v: %s", isJSON, tt.wantJSON, out)
			}
			if hasTime := strings.Contains(out, "time"); hasTime != tt.wantTime {
				t.Errorf("time field present = %v, want %v: %s", hasTime, tt.wantTime, out)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New(config.LoggingConfig{Format: "xml"}, nil); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message should be logged")
	}
}

func TestNew_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithRuleID(ctx, "rule-9")
	ctx = WithRuleName(ctx, "senior_sales")
	logger.With("component", "test").InfoContext(ctx, "evaluated")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}

	want := map[string]string{
		"request_id": "req-1",
		"rule_id":    "rule-9",
		"rule_name":  "senior_sales",
		"component":  "test",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should not be enabled at any level")
	}
}
