package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"mercator-hq/ruler/pkg/config"
	"mercator-hq/ruler/pkg/rules/ast"
)

const ruleColumns = `id, name, rule_string, ast_json, created_at, updated_at`

// SQLStore persists rules through database/sql. The driver is one of
// "sqlite" (modernc.org/sqlite), "sqlite3" (mattn/go-sqlite3), "pgx"
// (PostgreSQL) or "mysql".
type SQLStore struct {
	db      *sql.DB
	driver  string
	dialect dialect
	logger  *slog.Logger
	now     func() time.Time
}

// NewSQLStore opens the database described by cfg and creates the schema.
func NewSQLStore(cfg *config.StorageConfig, logger *slog.Logger) (*SQLStore, error) {
	if cfg == nil {
		return nil, errors.New("storage config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store.sql", "driver", cfg.Driver)

	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, NewStorageError(cfg.Driver, "open", err)
	}

	dsn := cfg.DSN
	if d.name == sqliteDialect.name {
		if err := ensureDir(dsn); err != nil {
			return nil, NewStorageError(cfg.Driver, "open", err)
		}
		dsn = sqliteDSN(cfg.Driver, dsn, cfg.BusyTimeout)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, NewStorageError(cfg.Driver, "open", err)
	}

	if isMemoryDSN(cfg.DSN) {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &SQLStore{
		db:      db,
		driver:  cfg.Driver,
		dialect: d,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQL store initialized",
		"max_open_conns", cfg.MaxOpenConns,
		"schema_version", SchemaVersion,
	)
	return s, nil
}

// migrate creates the schema and verifies its version.
func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return NewStorageError(s.driver, "create_schema", err)
		}
	}

	insert := insertSchemaVersionStd
	if s.dialect.name == mysqlDialect.name {
		insert = insertSchemaVersionMySQL
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(insert), SchemaVersion, s.now().UnixNano()); err != nil {
		return NewStorageError(s.driver, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, getSchemaVersion).Scan(&version); err != nil {
		return NewStorageError(s.driver, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError(s.driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, rule *StoredRule) error {
	if rule == nil {
		return NewStorageError(s.driver, "save", errors.New("rule is nil"))
	}

	astJSON, err := encodeRecord(rule.AST)
	if err != nil {
		return NewStorageError(s.driver, "save", err)
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError(s.driver, "save", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT created_at FROM rules WHERE id = ?`), rule.ID).Scan(&existing)
	found := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return NewStorageError(s.driver, "save", err)
	}

	now := s.now()
	if found && rule.CreatedAt.IsZero() {
		rule.CreatedAt = fromUnixNano(existing)
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if found {
		_, err = tx.ExecContext(ctx, s.dialect.rebind(
			`UPDATE rules SET name = ?, rule_string = ?, ast_json = ?, created_at = ?, updated_at = ? WHERE id = ?`),
			rule.Name, rule.RuleString, astJSON, rule.CreatedAt.UnixNano(), rule.UpdatedAt.UnixNano(), rule.ID)
	} else {
		_, err = tx.ExecContext(ctx, s.dialect.rebind(
			`INSERT INTO rules (`+ruleColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
			rule.ID, rule.Name, rule.RuleString, astJSON, rule.CreatedAt.UnixNano(), rule.UpdatedAt.UnixNano())
	}
	if err != nil {
		return NewStorageError(s.driver, "save", err)
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError(s.driver, "save", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, id string) (*StoredRule, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+ruleColumns+` FROM rules WHERE id = ?`), id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewStorageError(s.driver, "get", err)
	}
	return rule, nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]*StoredRule, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	offset := max(opts.Offset, 0)

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT `+ruleColumns+` FROM rules ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		return nil, NewStorageError(s.driver, "list", err)
	}
	defer rows.Close()

	rules := []*StoredRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, NewStorageError(s.driver, "list", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(s.driver, "list", err)
	}
	return rules, nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM rules WHERE id = ?`), id)
	if err != nil {
		return NewStorageError(s.driver, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewStorageError(s.driver, "delete", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOlderThan implements Store.
func (s *SQLStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM rules WHERE created_at < ?`), cutoff.UnixNano())
	if err != nil {
		return 0, NewStorageError(s.driver, "delete_older_than", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError(s.driver, "delete_older_than", err)
	}
	return n, nil
}

// Trim implements Store. It locates the oldest rule to keep and deletes
// everything ordered after it.
func (s *SQLStore) Trim(ctx context.Context, keep int64) (int64, error) {
	if keep < 0 {
		return 0, NewStorageError(s.driver, "trim", errors.New("keep must not be negative"))
	}

	var (
		res sql.Result
		err error
	)
	if keep == 0 {
		res, err = s.db.ExecContext(ctx, `DELETE FROM rules`)
	} else {
		var (
			boundaryAt int64
			boundaryID string
		)
		err = s.db.QueryRowContext(ctx, s.dialect.rebind(
			`SELECT created_at, id FROM rules ORDER BY created_at DESC, id DESC LIMIT 1 OFFSET ?`),
			keep-1).Scan(&boundaryAt, &boundaryID)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, NewStorageError(s.driver, "trim", err)
		}
		res, err = s.db.ExecContext(ctx, s.dialect.rebind(
			`DELETE FROM rules WHERE created_at < ? OR (created_at = ? AND id < ?)`),
			boundaryAt, boundaryAt, boundaryID)
	}
	if err != nil {
		return 0, NewStorageError(s.driver, "trim", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError(s.driver, "trim", err)
	}
	return n, nil
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules`).Scan(&n); err != nil {
		return 0, NewStorageError(s.driver, "count", err)
	}
	return n, nil
}

// Ping implements Store.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError(s.driver, "ping", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*StoredRule, error) {
	var (
		rule                 StoredRule
		astJSON              string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rule.ID, &rule.Name, &rule.RuleString, &astJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rec, err := decodeRecord(astJSON)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	rule.AST = rec
	rule.CreatedAt = fromUnixNano(createdAt)
	rule.UpdatedAt = fromUnixNano(updatedAt)
	return &rule, nil
}

func encodeRecord(rec ast.Record) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return "", fmt.Errorf("encode ast: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func decodeRecord(data string) (ast.Record, error) {
	var rec ast.Record
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return ast.Record{}, fmt.Errorf("decode ast: %w", err)
	}
	return rec, nil
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// sqliteDSN adds busy timeout and WAL pragmas in the syntax of each sqlite
// driver.
func sqliteDSN(driver, dsn string, busyTimeout time.Duration) string {
	var params []string
	ms := busyTimeout.Milliseconds()
	wal := !isMemoryDSN(dsn)

	switch driver {
	case "sqlite":
		if ms > 0 {
			params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", ms))
		}
		if wal {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
	case "sqlite3":
		if ms > 0 {
			params = append(params, fmt.Sprintf("_busy_timeout=%d", ms))
		}
		if wal {
			params = append(params, "_journal_mode=WAL")
		}
	}

	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// ensureDir creates the parent directory of a sqlite database file.
func ensureDir(dsn string) error {
	if isMemoryDSN(dsn) || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path, _, _ := strings.Cut(dsn, "?")
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
