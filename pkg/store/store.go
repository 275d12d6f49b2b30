package store

import (
	"context"
	"time"

	"mercator-hq/ruler/pkg/rules/ast"
)

// StoredRule is a persisted rule: the source string it was parsed from and
// its canonical tree record.
type StoredRule struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
	RuleString string     `json:"rule_string" yaml:"rule_string"`
	AST        ast.Record `json:"ast" yaml:"ast"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" yaml:"updated_at"`
}

// ListOptions pages through stored rules, newest first.
type ListOptions struct {
	// Limit is the maximum number of rules returned. 0 means no limit.
	Limit int

	// Offset skips that many rules.
	Offset int
}

// Store persists rules.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts or replaces a rule. An empty ID is assigned a new UUID.
	// CreatedAt is set when zero and UpdatedAt is always refreshed; both
	// are written back into rule.
	Save(ctx context.Context, rule *StoredRule) error

	// Get returns the rule with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*StoredRule, error)

	// List returns rules ordered by CreatedAt descending, ties broken by ID
	// descending.
	List(ctx context.Context, opts ListOptions) ([]*StoredRule, error)

	// Delete removes a rule, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// DeleteOlderThan removes rules created before cutoff and returns how
	// many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Trim removes all but the newest keep rules and returns how many were
	// removed.
	Trim(ctx context.Context, keep int64) (int64, error)

	// Count returns the number of stored rules.
	Count(ctx context.Context) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// newer reports whether a sorts before b in List order.
func newer(a, b *StoredRule) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
