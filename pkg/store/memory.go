package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BackendMemory names the in-memory backend.
const BackendMemory = "memory"

// MemoryStore keeps rules in a map. Rules are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]*StoredRule
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules: make(map[string]*StoredRule),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, rule *StoredRule) error {
	if rule == nil {
		return NewStorageError(BackendMemory, "save", errors.New("rule is nil"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := s.now()
	if existing, ok := s.rules[rule.ID]; ok && rule.CreatedAt.IsZero() {
		rule.CreatedAt = existing.CreatedAt
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*StoredRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rule
	return &cp, nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*StoredRule, error) {
	s.mu.RLock()
	all := make([]*StoredRule, 0, len(s.rules))
	for _, rule := range s.rules {
		cp := *rule
		all = append(all, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return newer(all[i], all[j]) })

	if opts.Offset >= len(all) {
		return []*StoredRule{}, nil
	}
	if opts.Offset > 0 {
		all = all[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

// DeleteOlderThan implements Store.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, rule := range s.rules {
		if rule.CreatedAt.Before(cutoff) {
			delete(s.rules, id)
			deleted++
		}
	}
	return deleted, nil
}

// Trim implements Store.
func (s *MemoryStore) Trim(ctx context.Context, keep int64) (int64, error) {
	if keep < 0 {
		return 0, NewStorageError(BackendMemory, "trim", errors.New("keep must not be negative"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if int64(len(s.rules)) <= keep {
		return 0, nil
	}

	all := make([]*StoredRule, 0, len(s.rules))
	for _, rule := range s.rules {
		all = append(all, rule)
	}
	sort.Slice(all, func(i, j int) bool { return newer(all[i], all[j]) })

	var deleted int64
	for _, rule := range all[keep:] {
		delete(s.rules, rule.ID)
		deleted++
	}
	return deleted, nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rules)), nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
