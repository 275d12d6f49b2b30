package store

import (
	"context"
	"errors"
	"time"

	"mercator-hq/ruler/pkg/telemetry/metrics"
)

// Operation results used as metric labels.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

// instrumentedStore records the outcome and latency of every call and keeps
// the stored-rules gauge current after writes.
type instrumentedStore struct {
	Store
	backend   string
	collector *metrics.Collector
}

// Instrument wraps s so that each operation is recorded by collector.
func Instrument(s Store, backend string, collector *metrics.Collector) Store {
	return &instrumentedStore{Store: s, backend: backend, collector: collector}
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	result := resultOK
	switch {
	case errors.Is(err, ErrNotFound):
		result = resultNotFound
	case err != nil:
		result = resultError
	}
	s.collector.RecordStoreOperation(s.backend, op, result, time.Since(start))
}

func (s *instrumentedStore) refreshCount(ctx context.Context) {
	if n, err := s.Store.Count(ctx); err == nil {
		s.collector.SetStoredRules(n)
	}
}

func (s *instrumentedStore) Save(ctx context.Context, rule *StoredRule) error {
	start := time.Now()
	err := s.Store.Save(ctx, rule)
	s.observe("save", start, err)
	if err == nil {
		s.refreshCount(ctx)
	}
	return err
}

func (s *instrumentedStore) Get(ctx context.Context, id string) (*StoredRule, error) {
	start := time.Now()
	rule, err := s.Store.Get(ctx, id)
	s.observe("get", start, err)
	return rule, err
}

func (s *instrumentedStore) List(ctx context.Context, opts ListOptions) ([]*StoredRule, error) {
	start := time.Now()
	rules, err := s.Store.List(ctx, opts)
	s.observe("list", start, err)
	return rules, err
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.Store.Delete(ctx, id)
	s.observe("delete", start, err)
	if err == nil {
		s.refreshCount(ctx)
	}
	return err
}

func (s *instrumentedStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	n, err := s.Store.DeleteOlderThan(ctx, cutoff)
	s.observe("delete_older_than", start, err)
	if err == nil && n > 0 {
		s.refreshCount(ctx)
	}
	return n, err
}

func (s *instrumentedStore) Trim(ctx context.Context, keep int64) (int64, error) {
	start := time.Now()
	n, err := s.Store.Trim(ctx, keep)
	s.observe("trim", start, err)
	if err == nil && n > 0 {
		s.refreshCount(ctx)
	}
	return n, err
}

func (s *instrumentedStore) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.Store.Count(ctx)
	s.observe("count", start, err)
	if err == nil {
		s.collector.SetStoredRules(n)
	}
	return n, err
}
