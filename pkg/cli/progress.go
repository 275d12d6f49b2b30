package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressReporter reports progress for long-running operations.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

// SimpleProgress renders a single-line progress bar with the item rate.
type SimpleProgress struct {
	mu       sync.Mutex
	total    int64
	current  int64
	started  time.Time
	lastDraw time.Time
	unit     string
	writer   io.Writer
}

// minRedraw bounds how often Update redraws the bar.
const minRedraw = 100 * time.Millisecond

// NewProgressReporter creates a reporter writing to w, or os.Stderr when w
// is nil. unit names the items counted, e.g. "evals".
func NewProgressReporter(w io.Writer, unit string) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	if unit == "" {
		unit = "items"
	}
	return &SimpleProgress{writer: w, unit: unit}
}

// Start initializes the progress reporter with the total number of items.
func (p *SimpleProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.started = time.Now()
	p.render()
}

// Update updates the current progress. Redraws are throttled.
func (p *SimpleProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if time.Since(p.lastDraw) >= minRedraw {
		p.render()
	}
}

// Finish marks the progress as complete.
func (p *SimpleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

// Error reports an error during progress.
func (p *SimpleProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\nError: %v\n", err)
}

func (p *SimpleProgress) render() {
	if p.total <= 0 {
		return
	}
	p.lastDraw = time.Now()

	percent := float64(p.current) / float64(p.total) * 100
	barWidth := 40
	filled := int(float64(barWidth) * percent / 100)

	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)

	fmt.Fprintf(p.writer, "\rProgress: [%s] %.1f%% (%s/%s) %s",
		bar, percent, humanize.Comma(p.current), humanize.Comma(p.total),
		FormatRate(p.current, time.Since(p.started), p.unit))
}

// FormatRate renders count items over elapsed as a rate such as
// "1.2 M evals/s".
func FormatRate(count int64, elapsed time.Duration, unit string) string {
	if elapsed <= 0 {
		return "- " + unit + "/s"
	}
	rate := float64(count) / elapsed.Seconds()
	value, prefix := humanize.ComputeSI(rate)
	if prefix == "" {
		return fmt.Sprintf("%.1f %s/s", value, unit)
	}
	return fmt.Sprintf("%.1f %s %s/s", value, prefix, unit)
}
