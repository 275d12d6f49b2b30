package store

import (
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// dialect captures the SQL differences between the supported drivers.
type dialect struct {
	name        string
	schema      []string
	placeholder func(n int) string
}

var (
	sqliteDialect = dialect{
		name: "sqlite",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    rule_string TEXT NOT NULL,
    ast_json TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_rules_created_at ON rules(created_at)`,
			`CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`,
		},
		placeholder: func(int) string { return "?" },
	}

	postgresDialect = dialect{
		name: "postgres",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    rule_string TEXT NOT NULL,
    ast_json TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_rules_created_at ON rules(created_at)`,
			`CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`,
		},
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}

	mysqlDialect = dialect{
		name: "mysql",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS rules (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(255) NOT NULL DEFAULT '',
    rule_string TEXT NOT NULL,
    ast_json LONGTEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    INDEX idx_rules_created_at (created_at)
)`,
			`CREATE TABLE IF NOT EXISTS schema_version (
    version INT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`,
		},
		placeholder: func(int) string { return "?" },
	}
)

// dialectFor returns the dialect of a registered driver name.
func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "pgx":
		return postgresDialect, nil
	case "mysql":
		return mysqlDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q (valid: sqlite, sqlite3, pgx, mysql)", driver)
	}
}

// rebind rewrites "?" placeholders into the dialect's style.
func (d dialect) rebind(query string) string {
	if d.placeholder(1) == "?" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// insertSchemaVersion records the schema version once. It is rebound per
// dialect; the conflict clause differs so it is chosen in migrate.
const (
	insertSchemaVersionStd   = `INSERT INTO schema_version (version, applied_at) VALUES (?, ?) ON CONFLICT (version) DO NOTHING`
	insertSchemaVersionMySQL = `INSERT IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`
	getSchemaVersion         = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`
)
