package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a valid configuration backed by the memory store.
func NewTestConfig() *ConfigBuilder {
	cfg := Config{}
	cfg.Storage.Backend = "memory"
	ApplyDefaults(&cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithReadTimeout sets the server read timeout.
func (b *ConfigBuilder) WithReadTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Server.ReadTimeout = d
	return b
}

// WithSQLStorage selects the sql backend.
func (b *ConfigBuilder) WithSQLStorage(driver, dsn string) *ConfigBuilder {
	b.cfg.Storage.Backend = "sql"
	b.cfg.Storage.Driver = driver
	b.cfg.Storage.DSN = dsn
	return b
}

// WithRetention enables scheduled pruning.
func (b *ConfigBuilder) WithRetention(days int, schedule string) *ConfigBuilder {
	b.cfg.Storage.Retention.Enabled = true
	b.cfg.Storage.Retention.Days = days
	b.cfg.Storage.Retention.Schedule = schedule
	return b
}

// WithCatalog enables the catalog at path.
func (b *ConfigBuilder) WithCatalog(path string, watch bool) *ConfigBuilder {
	b.cfg.Catalog.Enabled = true
	b.cfg.Catalog.Path = path
	b.cfg.Catalog.Watch = watch
	return b
}

// WithLogLevel sets the logging level.
func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithTracing enables tracing against endpoint.
func (b *ConfigBuilder) WithTracing(endpoint string) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = true
	b.cfg.Telemetry.Tracing.Endpoint = endpoint
	return b
}
