package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mercator-hq/ruler/pkg/config"
	"mercator-hq/ruler/pkg/rules/ast"
	"mercator-hq/ruler/pkg/telemetry/logging"
	"mercator-hq/ruler/pkg/telemetry/metrics"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	cfg := &config.StorageConfig{
		Backend:      "sql",
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "rules.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		BusyTimeout:  5 * time.Second,
	}
	s, err := NewSQLStore(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns one fresh instance of every backend under test.
func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func sampleRule(name, src string, node ast.Node) *StoredRule {
	return &StoredRule{Name: name, RuleString: src, AST: *ast.Serialize(node)}
}

func seniorSales() ast.Node {
	return ast.NewOperator(ast.And,
		ast.NewOperand("age", ast.OpGreaterThan, ast.NumberLiteral(30)),
		ast.NewOperand("department", ast.OpEqual, ast.StringLiteral("Sales")),
	)
}

func TestStore_SaveAndGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rule := sampleRule("senior_sales", "age > 30 AND department = 'Sales'", seniorSales())

			if err := s.Save(ctx, rule); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if rule.ID == "" {
				t.Fatal("Save() did not assign an ID")
			}
			if rule.CreatedAt.IsZero() || rule.UpdatedAt.IsZero() {
				t.Fatal("Save() did not stamp timestamps")
			}

			got, err := s.Get(ctx, rule.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Name != rule.Name || got.RuleString != rule.RuleString {
				t.Errorf("Get() = %+v, want %+v", got, rule)
			}
			if !got.CreatedAt.Equal(rule.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rule.CreatedAt)
			}

			tree, err := ast.Deserialize(&got.AST)
			if err != nil {
				t.Fatalf("stored AST does not deserialize: %v", err)
			}
			if !ast.Equal(tree, seniorSales()) {
				t.Errorf("stored AST = %v, want %v", tree, seniorSales())
			}
		})
	}
}

func TestStore_SaveUpdatesExisting(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rule := sampleRule("r", "a = 1", ast.NewOperand("a", ast.OpEqual, ast.NumberLiteral(1)))
			if err := s.Save(ctx, rule); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			created := rule.CreatedAt

			update := sampleRule("r", "a = 2", ast.NewOperand("a", ast.OpEqual, ast.NumberLiteral(2)))
			update.ID = rule.ID
			if err := s.Save(ctx, update); err != nil {
				t.Fatalf("Save() update error = %v", err)
			}
			if !update.CreatedAt.Equal(created) {
				t.Errorf("update changed CreatedAt from %v to %v", created, update.CreatedAt)
			}

			got, err := s.Get(ctx, rule.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.RuleString != "a = 2" {
				t.Errorf("RuleString = %q, want updated value", got.RuleString)
			}
			if n, _ := s.Count(ctx); n != 1 {
				t.Errorf("Count() = %d, want 1", n)
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() error = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Delete() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_ListOrderAndPaging(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, id := range []string{"a", "b", "c", "d"} {
				rule := sampleRule(id, "x = 1", ast.NewOperand("x", ast.OpEqual, ast.NumberLiteral(1)))
				rule.ID = id
				rule.CreatedAt = base.Add(time.Duration(i) * time.Hour)
				if err := s.Save(ctx, rule); err != nil {
					t.Fatalf("Save(%s) error = %v", id, err)
				}
			}

			tests := []struct {
				opts ListOptions
				want []string
			}{
				{ListOptions{}, []string{"d", "c", "b", "a"}},
				{ListOptions{Limit: 2}, []string{"d", "c"}},
				{ListOptions{Limit: 2, Offset: 2}, []string{"b", "a"}},
				{ListOptions{Offset: 3}, []string{"a"}},
				{ListOptions{Offset: 10}, []string{}},
			}
			for _, tt := range tests {
				got, err := s.List(ctx, tt.opts)
				if err != nil {
					t.Fatalf("List(%+v) error = %v", tt.opts, err)
				}
				ids := make([]string, len(got))
				for i, r := range got {
					ids[i] = r.ID
				}
				if len(ids) != len(tt.want) {
					t.Errorf("List(%+v) = %v, want %v", tt.opts, ids, tt.want)
					continue
				}
				for i := range ids {
					if ids[i] != tt.want[i] {
						t.Errorf("List(%+v) = %v, want %v", tt.opts, ids, tt.want)
						break
					}
				}
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rule := sampleRule("r", "a = 1", ast.NewOperand("a", ast.OpEqual, ast.NumberLiteral(1)))
			if err := s.Save(ctx, rule); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if err := s.Delete(ctx, rule.ID); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := s.Get(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_DeleteOlderThanAndTrim(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 6; i++ {
				rule := sampleRule("", "x = 1", ast.NewOperand("x", ast.OpEqual, ast.NumberLiteral(1)))
				rule.CreatedAt = base.AddDate(0, 0, i)
				if err := s.Save(ctx, rule); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			}

			deleted, err := s.DeleteOlderThan(ctx, base.AddDate(0, 0, 2))
			if err != nil {
				t.Fatalf("DeleteOlderThan() error = %v", err)
			}
			if deleted != 2 {
				t.Errorf("DeleteOlderThan() = %d, want 2", deleted)
			}

			deleted, err = s.Trim(ctx, 3)
			if err != nil {
				t.Fatalf("Trim() error = %v", err)
			}
			if deleted != 1 {
				t.Errorf("Trim(3) = %d, want 1", deleted)
			}

			rules, err := s.List(ctx, ListOptions{})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(rules) != 3 {
				t.Fatalf("len(List()) = %d, want 3", len(rules))
			}
			if oldest := rules[len(rules)-1].CreatedAt; !oldest.Equal(base.AddDate(0, 0, 3)) {
				t.Errorf("oldest kept = %v, want %v", oldest, base.AddDate(0, 0, 3))
			}

			if deleted, _ := s.Trim(ctx, 10); deleted != 0 {
				t.Errorf("Trim(10) = %d, want 0", deleted)
			}
			if deleted, _ := s.Trim(ctx, 0); deleted != 3 {
				t.Errorf("Trim(0) = %d, want 3", deleted)
			}
			if _, err := s.Trim(ctx, -1); err == nil {
				t.Error("Trim(-1) returned no error")
			}
		})
	}
}

func TestStore_Ping(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Ping(context.Background()); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}
}

func TestMemoryStore_Isolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rule := sampleRule("original", "a = 1", ast.NewOperand("a", ast.OpEqual, ast.NumberLiteral(1)))
	if err := s.Save(ctx, rule); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rule.Name = "mutated"

	got, _ := s.Get(ctx, rule.ID)
	if got.Name != "original" {
		t.Errorf("stored rule changed through caller's pointer: %q", got.Name)
	}
	got.Name = "mutated again"
	again, _ := s.Get(ctx, rule.ID)
	if again.Name != "original" {
		t.Errorf("stored rule changed through returned pointer: %q", again.Name)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rule := sampleRule("", "a = 1", ast.NewOperand("a", ast.OpEqual, ast.NumberLiteral(1)))
			if err := s.Save(ctx, rule); err != nil {
				t.Errorf("Save() error = %v", err)
				return
			}
			if _, err := s.Get(ctx, rule.ID); err != nil {
				t.Errorf("Get() error = %v", err)
			}
			_, _ = s.List(ctx, ListOptions{Limit: 5})
		}()
	}
	wg.Wait()

	if n, _ := s.Count(ctx); n != 50 {
		t.Errorf("Count() = %d, want 50", n)
	}
}

func TestSQLStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rules.db")
	cfg := &config.StorageConfig{Backend: "sql", Driver: "sqlite", DSN: path, MaxOpenConns: 2}

	s, err := NewSQLStore(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	rule := sampleRule("kept", "a = 1", ast.NewOperand("a", ast.OpEqual, ast.NumberLiteral(1)))
	if err := s.Save(context.Background(), rule); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s.Close()

	reopened, err := NewSQLStore(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Name != "kept" {
		t.Errorf("Name = %q, want kept", got.Name)
	}
}

func TestNewSQLStore_UnsupportedDriver(t *testing.T) {
	_, err := NewSQLStore(&config.StorageConfig{Driver: "oracle", DSN: "x"}, nil)
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("error = %v, want StorageError", err)
	}
	if storageErr.Op != "open" {
		t.Errorf("Op = %q, want open", storageErr.Op)
	}
}

func TestRebind(t *testing.T) {
	query := `SELECT * FROM rules WHERE created_at < ? OR (created_at = ? AND id < ?)`

	if got := sqliteDialect.rebind(query); got != query {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	want := `SELECT * FROM rules WHERE created_at < $1 OR (created_at = $2 AND id < $3)`
	if got := postgresDialect.rebind(query); got != want {
		t.Errorf("postgres rebind = %s, want %s", got, want)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		driver string
		dsn    string
		want   string
	}{
		{"sqlite", "data/rules.db", "data/rules.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
		{"sqlite3", "data/rules.db", "data/rules.db?_busy_timeout=5000&_journal_mode=WAL"},
		{"sqlite", "data/rules.db?cache=shared", "data/rules.db?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
		{"sqlite", ":memory:", ":memory:?_pragma=busy_timeout(5000)"},
	}

	for _, tt := range tests {
		if got := sqliteDSN(tt.driver, tt.dsn, 5*time.Second); got != tt.want {
			t.Errorf("sqliteDSN(%q, %q) = %q, want %q", tt.driver, tt.dsn, got, tt.want)
		}
	}
}

func TestOpen(t *testing.T) {
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)

	s, err := Open(&config.StorageConfig{Backend: "memory"}, nil, collector)
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	defer s.Close()

	if _, ok := s.(*instrumentedStore); !ok {
		t.Errorf("Open() with collector returned %T, want instrumented store", s)
	}

	if _, err := Open(&config.StorageConfig{Backend: "cassandra"}, nil, nil); err == nil {
		t.Error("Open() with unknown backend returned no error")
	}
}
