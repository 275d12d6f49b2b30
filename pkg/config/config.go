package config

import "time"

// Config is the root configuration structure for the ruler service.
// It contains the HTTP server, rule engine limits, rule storage, the rule
// catalog and telemetry settings.
type Config struct {
	// Server contains HTTP API server configuration including listen address,
	// timeouts, and request size limits.
	Server ServerConfig `yaml:"server"`

	// Engine contains limits applied when parsing and decoding rules.
	Engine EngineConfig `yaml:"engine"`

	// Storage contains configuration for persisting created rules.
	Storage StorageConfig `yaml:"storage"`

	// Catalog contains configuration for named rules loaded from YAML files.
	Catalog CatalogConfig `yaml:"catalog"`

	// Secrets configures where ${secret:name} references in the storage DSN
	// are resolved from.
	Secrets SecretsConfig `yaml:"secrets"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address the API listens on.
	// Default: "127.0.0.1:5000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits the size of request bodies.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// TLS contains HTTPS configuration for the API.
	TLS TLSConfig `yaml:"tls"`

	// RateLimit contains per-client request limits for the API.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// TLSConfig contains TLS configuration for the API server.
type TLSConfig struct {
	// Enabled serves the API over HTTPS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM-encoded certificate (chain).
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept.
	// Options: "1.2", "1.3"
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// CipherSuites restricts the TLS 1.2 cipher suites. Empty uses Go's
	// defaults. TLS 1.3 suites are not configurable.
	// Example: ["TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"]
	CipherSuites []string `yaml:"cipher_suites"`

	// ClientCAFile enables mutual TLS: client certificates are verified
	// against the CAs in this PEM file.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuth controls how client certificates are handled when
	// ClientCAFile is set.
	// Options: "require", "verify_if_given"
	// Default: "require"
	ClientAuth string `yaml:"client_auth"`

	// ReloadInterval is how often the certificate files are checked for
	// changes (0 disables reloading).
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	// Enabled turns on rate limiting.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained request rate allowed per client IP.
	// Default: 50
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests a client may make at once.
	// Default: 100
	Burst int64 `yaml:"burst"`

	// MaxConcurrent caps in-flight requests across all clients
	// (0 = unlimited).
	// Default: 0
	MaxConcurrent int `yaml:"max_concurrent"`

	// IdleTimeout is how long an inactive client's bucket is kept.
	// Default: 10m
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// EngineConfig contains rule engine limits.
type EngineConfig struct {
	// MaxDepth is the maximum parenthesis nesting in a rule string.
	// Default: 200
	MaxDepth int `yaml:"max_depth"`

	// MaxASTDepth is the maximum tree depth accepted when decoding a
	// serialized rule, and the deepest tree a rule string may parse to.
	// Default and maximum: 9000
	MaxASTDepth int `yaml:"max_ast_depth"`

	// MaxCombine is the maximum number of rule strings per combine request.
	// Default: 1000
	MaxCombine int `yaml:"max_combine"`
}

// StorageConfig contains configuration for the rule store.
type StorageConfig struct {
	// Backend selects the store implementation.
	// Options: "memory", "sql"
	// Default: "sql"
	Backend string `yaml:"backend"`

	// Driver is the database/sql driver used by the sql backend.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo), "pgx", "mysql"
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// DSN is the data source name passed to the driver.
	// For the sqlite drivers this is a file path.
	// Default: "data/rules.db"
	DSN string `yaml:"dsn"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime is the maximum lifetime of a connection.
	// Default: 30m
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// BusyTimeout is applied to sqlite connections.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// ListDefaultLimit is the page size used when a list request has none.
	// Default: 100
	ListDefaultLimit int `yaml:"list_default_limit"`

	// ListMaxLimit caps the page size of list requests.
	// Default: 1000
	ListMaxLimit int `yaml:"list_max_limit"`

	// Retention contains automatic pruning configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains configuration for pruning stored rules.
type RetentionConfig struct {
	// Enabled turns on scheduled pruning.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Days is how long stored rules are kept (0 = forever).
	// Default: 90
	Days int `yaml:"days"`

	// MaxRecords caps the number of stored rules (0 = unlimited).
	// The oldest rules beyond the cap are pruned.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// Schedule is the cron expression for pruning runs.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`
}

// CatalogConfig contains configuration for named rules loaded from files.
type CatalogConfig struct {
	// Enabled turns on the catalog.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is a catalog YAML file or a directory of catalog files.
	// Default: "./rules.yaml"
	Path string `yaml:"path"`

	// Watch reloads the catalog when its files change.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce coalesces bursts of file events into one reload.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`

	// Git loads the catalog from a Git repository instead of Path.
	Git CatalogGitConfig `yaml:"git"`
}

// CatalogGitConfig configures a catalog kept in a Git repository.
type CatalogGitConfig struct {
	// Enabled clones Repository and serves the catalog from the clone.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Repository is the clone URL (HTTPS, SSH or a local path).
	Repository string `yaml:"repository"`

	// Branch is the branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the catalog file or directory inside the repository.
	// Default: "" (repository root)
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "data/catalog"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history (0 = full clone).
	// Default: 0
	Depth int `yaml:"depth"`

	// CleanOnStart removes an existing clone before cloning.
	// Default: false
	CleanOnStart bool `yaml:"clean_on_start"`

	// PollInterval is how often the branch is pulled (0 = load once).
	// Default: 1m
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures repository authentication.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type selects the method.
	// Options: "none", "token", "ssh"
	// Default: "none"
	Type string `yaml:"type"`

	// Token is an HTTPS access token. Accepts ${secret:name}.
	Token string `yaml:"token"`

	// SSHKeyPath is the private key used for SSH remotes.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase decrypts SSHKeyPath. Accepts ${secret:name}.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// SecretsConfig configures secret resolution.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name to form the
	// environment variable it is read from.
	// Default: "RULER_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory holding one file per secret, as mounted by
	// Kubernetes or Docker. Files must be 0600 or 0400. Empty disables it.
	Dir string `yaml:"dir"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactAttributes lists record attributes whose values are masked in
	// debug logs (e.g. "ssn", "email").
	RedactAttributes []string `yaml:"redact_attributes"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "ruler"
	Namespace string `yaml:"namespace"`

	// DurationBuckets defines histogram buckets for parse and evaluate
	// durations (seconds).
	// Default: [0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1 (10%)
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "ruler"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Secure enables TLS for the OTLP connection.
	// Default: false
	Secure bool `yaml:"secure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
