// Package store persists parsed rules together with the source string they
// came from.
//
// Two backends implement Store:
//   - MemoryStore: a map guarded by a mutex, for tests and ephemeral servers
//   - SQLStore: database/sql with the "sqlite", "sqlite3", "pgx" or "mysql"
//     driver, selected by configuration
//
// Open builds the configured backend and, given a metrics collector, wraps it
// so every operation is counted and timed:
//
//	s, err := store.Open(&cfg.Storage, logger, collector)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	rule := &store.StoredRule{RuleString: src, AST: *ast.Serialize(node)}
//	if err := s.Save(ctx, rule); err != nil {
//	    return err
//	}
//
// Timestamps are stored as Unix nanoseconds so every driver orders and
// compares them the same way.
package store
