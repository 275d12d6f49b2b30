package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Reloader reloads a catalog from disk, keeping the previous rules on
// failure. *catalog.Catalog implements it.
type Reloader interface {
	Reload() error
}

// Status is a point-in-time view of a Syncer.
type Status struct {
	Commit   string    `json:"commit"`
	Rejected string    `json:"rejected,omitempty"`
	LastSync time.Time `json:"last_sync"`
	Error    string    `json:"error,omitempty"`
}

// Syncer pulls the catalog repository on an interval and reloads the
// catalog when catalog files change.
type Syncer struct {
	repo     *Repository
	catalog  Reloader
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	current  string
	rejected string
	lastSync time.Time
	lastErr  error
	started  bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewSyncer creates a syncer. A non-positive interval disables polling;
// Sync can still be called directly.
func NewSyncer(repo *Repository, catalog Reloader, interval time.Duration, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		repo:     repo,
		catalog:  catalog,
		interval: interval,
		logger:   logger.With("component", "catalog_git"),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start records the checked out commit as the last good one and starts
// polling until ctx is cancelled or Stop is called.
func (s *Syncer) Start(ctx context.Context) error {
	head, err := s.repo.Head()
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("syncer already started")
	}
	s.current = head
	s.started = true
	s.mu.Unlock()

	if s.interval <= 0 {
		close(s.done)
		return nil
	}

	s.logger.Info("catalog sync started", "commit", short(head), "poll_interval", s.interval)
	go s.loop(ctx)
	return nil
}

func (s *Syncer) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.Error("catalog sync failed", "error", err)
			}
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

// Stop ends polling and waits for an in-progress sync to finish.
func (s *Syncer) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
	return nil
}

// Sync fetches the branch once. A new commit is checked out; when it changes
// catalog files the catalog is reloaded, and if that fails the clone is reset
// to the last good commit and the new commit is not retried until the
// branch moves again.
func (s *Syncer) Sync(ctx context.Context) error {
	err := s.sync(ctx)

	s.mu.Lock()
	s.lastSync = time.Now()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *Syncer) sync(ctx context.Context) error {
	remote, err := s.repo.Fetch(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	current, rejected := s.current, s.rejected
	s.mu.Unlock()
	if remote == current || remote == rejected {
		return nil
	}

	changed, err := s.repo.ChangedFiles(current, remote)
	if err != nil {
		return err
	}
	if err := s.repo.Checkout(remote); err != nil {
		return err
	}

	logger := s.logger.With("from", short(current), "to", short(remote))
	if !touchesCatalog(changed, s.repo.cfg.Path) {
		s.setCurrent(remote)
		logger.Info("no catalog files changed, skipping reload", "changed_files", len(changed))
		return nil
	}

	if err := s.catalog.Reload(); err != nil {
		s.mu.Lock()
		s.rejected = remote
		s.mu.Unlock()

		logger.Error("catalog at new commit is invalid, rolling back", "error", err)
		if rbErr := s.repo.Checkout(current); rbErr != nil {
			return errors.Join(fmt.Errorf("commit %s rejected: %w", short(remote), err), rbErr)
		}
		if rlErr := s.catalog.Reload(); rlErr != nil {
			logger.Error("reload after rollback failed", "error", rlErr)
		}
		return fmt.Errorf("commit %s rejected: %w", short(remote), err)
	}

	s.setCurrent(remote)
	if info, err := s.repo.Commit(remote); err == nil {
		logger = logger.With("author", info.Author)
	}
	logger.Info("catalog updated from repository", "changed_files", len(changed))
	return nil
}

func (s *Syncer) setCurrent(sha string) {
	s.mu.Lock()
	s.current = sha
	s.rejected = ""
	s.mu.Unlock()
}

// Status returns the current sync state.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Commit: s.current, Rejected: s.rejected, LastSync: s.lastSync}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	return st
}

// Check is a health check failing while the last sync failed or the branch
// head is a rejected commit.
func (s *Syncer) Check(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		return s.lastErr
	}
	if s.rejected != "" {
		return fmt.Errorf("branch head %s was rejected, serving %s", short(s.rejected), short(s.current))
	}
	return nil
}
