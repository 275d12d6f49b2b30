package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/ruler/pkg/config"
	"mercator-hq/ruler/pkg/store"
	"mercator-hq/ruler/pkg/telemetry/metrics"
)

// Pruner enforces the retention policy on a rule store.
type Pruner struct {
	store   store.Store
	config  config.RetentionConfig
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewPruner creates a pruner for s.
func NewPruner(s store.Store, cfg config.RetentionConfig, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:  s,
		config: cfg,
		logger: logger.With("component", "store.retention"),
		now:    time.Now,
	}
}

// WithMetrics records pruned rule counts on collector.
func (p *Pruner) WithMetrics(collector *metrics.Collector) *Pruner {
	p.metrics = collector
	return p
}

// Prune deletes rules older than the retention window, then the oldest rules
// beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.store == nil {
		return 0, errors.New("retention: no store configured")
	}

	var total int64

	if p.config.Days > 0 {
		cutoff := p.now().AddDate(0, 0, -p.config.Days)
		deleted, err := p.store.DeleteOlderThan(ctx, cutoff)
		total += deleted
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		p.logger.Debug("pruned rules by age",
			"deleted_count", deleted,
			"cutoff", cutoff,
		)
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.store.Trim(ctx, p.config.MaxRecords)
		total += deleted
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		p.logger.Debug("pruned rules by count",
			"deleted_count", deleted,
			"max_records", p.config.MaxRecords,
		)
	}

	if total > 0 {
		p.metrics.RecordPruned(total)
		p.logger.Info("rule pruning completed",
			"total_deleted", total,
			"retention_days", p.config.Days,
			"max_records", p.config.MaxRecords,
		)
	}

	return total, nil
}
