package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSimpleProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgressReporter(buf, "evals")

	p.Start(10000)
	p.Update(5000)
	p.Finish()

	out := buf.String()
	if !strings.Contains(out, "100.0%") {
		t.Errorf("output missing completion: %q", out)
	}
	if !strings.Contains(out, "(10,000/10,000)") {
		t.Errorf("output missing humanized counts: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("Finish() did not end the line: %q", out)
	}
}

func TestSimpleProgress_ZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgressReporter(buf, "")
	p.Start(0)
	p.Update(1)
	if buf.Len() != 0 {
		t.Errorf("progress rendered without a total: %q", buf.String())
	}
}

func TestSimpleProgress_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgressReporter(buf, "evals")
	p.Error(errors.New("type mismatch"))
	if !strings.Contains(buf.String(), "Error: type mismatch") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		count   int64
		elapsed time.Duration
		want    string
	}{
		{count: 500, elapsed: time.Second, want: "500.0 evals/s"},
		{count: 2500000, elapsed: time.Second, want: "2.5 M evals/s"},
		{count: 3000, elapsed: 2 * time.Second, want: "1.5 k evals/s"},
		{count: 10, elapsed: 0, want: "- evals/s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatRate(tt.count, tt.elapsed, "evals"); got != tt.want {
				t.Errorf("FormatRate(%d, %v) = %q, want %q", tt.count, tt.elapsed, got, tt.want)
			}
		})
	}
}
