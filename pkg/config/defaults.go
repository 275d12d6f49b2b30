package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:5000"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = int64(1048576) // 1MB

	// TLS defaults
	DefaultTLSMinVersion     = "1.3"
	DefaultTLSClientAuth     = "require"
	DefaultTLSReloadInterval = 5 * time.Minute

	// Rate limit defaults
	DefaultRateLimitRequestsPerSecond = 50.0
	DefaultRateLimitBurst             = int64(100)
	DefaultRateLimitIdleTimeout       = 10 * time.Minute

	// Engine defaults
	DefaultEngineMaxDepth    = 200
	DefaultEngineMaxASTDepth = 9000
	DefaultEngineMaxCombine  = 1000

	// Storage defaults
	DefaultStorageBackend          = "sql"
	DefaultStorageDriver           = "sqlite"
	DefaultStorageDSN              = "data/rules.db"
	DefaultStorageMaxOpenConns     = 10
	DefaultStorageMaxIdleConns     = 5
	DefaultStorageConnMaxLifetime  = 30 * time.Minute
	DefaultStorageBusyTimeout      = 5 * time.Second
	DefaultStorageListDefaultLimit = 100
	DefaultStorageListMaxLimit     = 1000
	DefaultRetentionDays           = 90
	DefaultRetentionSchedule       = "0 3 * * *"

	// Catalog defaults
	DefaultCatalogPath            = "./rules.yaml"
	DefaultCatalogDebounce        = 100 * time.Millisecond
	DefaultCatalogGitBranch       = "main"
	DefaultCatalogGitLocalPath    = "data/catalog"
	DefaultCatalogGitPollInterval = time.Minute
	DefaultCatalogGitTimeout      = 30 * time.Second
	DefaultCatalogGitAuthType     = "none"

	// Secrets defaults
	DefaultSecretsEnvPrefix = "RULER_SECRET_"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "ruler"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "ruler"
	DefaultOTLPTimeout        = 10 * time.Second
)

// DefaultDurationBuckets are histogram buckets sized for in-process rule
// operations, which usually finish in microseconds.
var DefaultDurationBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Server.TLS.ClientAuth == "" {
		cfg.Server.TLS.ClientAuth = DefaultTLSClientAuth
	}
	if cfg.Server.TLS.ReloadInterval == 0 {
		cfg.Server.TLS.ReloadInterval = DefaultTLSReloadInterval
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = DefaultRateLimitRequestsPerSecond
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = DefaultRateLimitBurst
	}
	if cfg.Server.RateLimit.IdleTimeout == 0 {
		cfg.Server.RateLimit.IdleTimeout = DefaultRateLimitIdleTimeout
	}

	// Engine defaults
	if cfg.Engine.MaxDepth == 0 {
		cfg.Engine.MaxDepth = DefaultEngineMaxDepth
	}
	if cfg.Engine.MaxASTDepth == 0 {
		cfg.Engine.MaxASTDepth = DefaultEngineMaxASTDepth
	}
	if cfg.Engine.MaxCombine == 0 {
		cfg.Engine.MaxCombine = DefaultEngineMaxCombine
	}

	applyStorageDefaults(&cfg.Storage)

	// Catalog defaults
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = DefaultCatalogPath
	}
	if cfg.Catalog.Debounce == 0 {
		cfg.Catalog.Debounce = DefaultCatalogDebounce
	}
	applyCatalogGitDefaults(&cfg.Catalog.Git)

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyCatalogGitDefaults(cfg *CatalogGitConfig) {
	if cfg.Branch == "" {
		cfg.Branch = DefaultCatalogGitBranch
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = DefaultCatalogGitLocalPath
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultCatalogGitPollInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultCatalogGitTimeout
	}
	if cfg.Auth.Type == "" {
		cfg.Auth.Type = DefaultCatalogGitAuthType
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultStorageBackend
	}
	if cfg.Driver == "" {
		cfg.Driver = DefaultStorageDriver
	}
	if cfg.DSN == "" && (cfg.Driver == "sqlite" || cfg.Driver == "sqlite3") {
		cfg.DSN = DefaultStorageDSN
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = DefaultStorageMaxOpenConns
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = DefaultStorageMaxIdleConns
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = DefaultStorageConnMaxLifetime
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = DefaultStorageBusyTimeout
	}
	if cfg.ListDefaultLimit == 0 {
		cfg.ListDefaultLimit = DefaultStorageListDefaultLimit
	}
	if cfg.ListMaxLimit == 0 {
		cfg.ListMaxLimit = DefaultStorageListMaxLimit
	}

	// Retention
	if cfg.Retention.Days == 0 {
		cfg.Retention.Days = DefaultRetentionDays
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Metrics.DurationBuckets) == 0 {
		cfg.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}

	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
}

// NewDefaultConfig returns a configuration with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
