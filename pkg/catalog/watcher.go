package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a burst of file events
// triggers a reload.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a catalog when its files change.
type Watcher struct {
	catalog  *Catalog
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	logger   *slog.Logger

	// file is set when the catalog is a single file. Its parent directory
	// is watched so that editors replacing the file are still seen.
	file string

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for c. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(c *Catalog, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		catalog:  c,
		watcher:  fw,
		debounce: NewDebouncer(debounce),
		logger:   logger.With("component", "catalog.watcher", "path", c.Path()),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Run watches until ctx is cancelled or Stop is called. It blocks.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.addPath(w.catalog.Path()); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}
	w.logger.Info("catalog watcher started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("catalog watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("catalog watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Has(fsnotify.Create) {
				w.watchNewDirectory(event.Name)
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("catalog file event", "file", event.Name, "op", event.Op.String())
			w.debounce.Trigger(func() {
				_ = w.catalog.Reload()
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("catalog watcher error", "error", err)
		}
	}
}

// Stop ends Run and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	w.debounce.Stop()
	return w.watcher.Close()
}

func (w *Watcher) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		w.file = filepath.Clean(path)
		return w.watcher.Add(filepath.Dir(w.file))
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", p, err)
		}
		return nil
	})
}

// watchNewDirectory starts watching a directory created inside a watched
// catalog directory.
func (w *Watcher) watchNewDirectory(path string) {
	if w.file != "" || strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch new directory", "dir", path, "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if w.file != "" {
		return filepath.Clean(event.Name) == w.file
	}
	base := filepath.Base(event.Name)
	return !strings.HasPrefix(base, ".") && hasCatalogExtension(base)
}

// Debouncer coalesces rapid triggers into one callback after a quiet period.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one and restarting the
// quiet period.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		d.callback = nil
		stopped := d.stopped
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
