package store

import (
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/ruler/pkg/config"
	"mercator-hq/ruler/pkg/telemetry/metrics"
)

// Open creates the store selected by cfg.Backend. When collector is non-nil
// the store records operation metrics.
func Open(cfg *config.StorageConfig, logger *slog.Logger, collector *metrics.Collector) (Store, error) {
	if cfg == nil {
		return nil, errors.New("storage config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		s       Store
		backend string
	)
	switch cfg.Backend {
	case BackendMemory:
		s, backend = NewMemoryStore(), BackendMemory
	case "sql":
		sqlStore, err := NewSQLStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		s, backend = sqlStore, cfg.Driver
	default:
		return nil, fmt.Errorf("unsupported storage backend %q (valid: memory, sql)", cfg.Backend)
	}

	if collector != nil {
		s = Instrument(s, backend, collector)
	}
	return s, nil
}
