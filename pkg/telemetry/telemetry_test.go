package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"mercator-hq/ruler/pkg/config"
)

func TestNew(t *testing.T) {
	cfg := config.NewDefaultConfig().Telemetry
	cfg.Logging.RedactAttributes = []string{"ssn"}

	var buf bytes.Buffer
	tel, err := New(&cfg, "1.0.0", &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer tel.Shutdown(context.Background())

	tel.Logger().Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("log output %q missing message", buf.String())
	}
	if !tel.Redactor().IsSensitive("SSN") {
		t.Error("redactor does not mask configured attribute")
	}
	if tel.Tracer().Enabled() {
		t.Error("tracing enabled by default")
	}
	if tel.Metrics() == nil || tel.Health() == nil {
		t.Fatal("missing metrics or health component")
	}
	if report := tel.Health().Check(context.Background()); report.Version != "1.0.0" {
		t.Errorf("health version = %q, want 1.0.0", report.Version)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, "", nil); err == nil {
		t.Error("New(nil) returned no error")
	}

	cfg := config.NewDefaultConfig().Telemetry
	cfg.Logging.Level = "loud"
	if _, err := New(&cfg, "", nil); err == nil {
		t.Error("New() with invalid log level returned no error")
	}
}
