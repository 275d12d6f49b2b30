package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "configuration validation failed"
	case 1:
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// HasField reports whether a validation error was recorded for field.
func (e ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Supported option values.
var (
	validBackends  = map[string]bool{"memory": true, "sql": true}
	validDrivers   = map[string]bool{"sqlite": true, "sqlite3": true, "pgx": true, "mysql": true}
	validLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats   = map[string]bool{"json": true, "text": true, "console": true}
	validSamplers  = map[string]bool{"always": true, "never": true, "ratio": true}
	validTLS       = map[string]bool{"1.2": true, "1.3": true}
	validAuth      = map[string]bool{"require": true, "verify_if_given": true}
	validGitAuth   = map[string]bool{"none": true, "token": true, "ssh": true}
	scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateCatalog(&cfg.Catalog)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "must not be negative"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must not be negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must not be negative"})
	}

	errs = append(errs, validateTLS(&cfg.TLS)...)
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)

	return errs
}

func validateTLS(cfg *TLSConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	var errs []FieldError

	if cfg.CertFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "cert file is required when TLS is enabled"})
	}
	if cfg.KeyFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key file is required when TLS is enabled"})
	}
	if !validTLS[cfg.MinVersion] {
		errs = append(errs, FieldError{
			Field:   "server.tls.min_version",
			Message: fmt.Sprintf("invalid TLS version %q: must be '1.2' or '1.3'", cfg.MinVersion),
		})
	}
	if !validAuth[cfg.ClientAuth] {
		errs = append(errs, FieldError{
			Field:   "server.tls.client_auth",
			Message: fmt.Sprintf("invalid client auth %q: must be 'require' or 'verify_if_given'", cfg.ClientAuth),
		})
	}
	if cfg.ReloadInterval < 0 {
		errs = append(errs, FieldError{Field: "server.tls.reload_interval", Message: "must not be negative"})
	}

	return errs
}

func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	var errs []FieldError

	if cfg.RequestsPerSecond <= 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.requests_per_second", Message: "must be positive"})
	}
	if cfg.Burst < 1 {
		errs = append(errs, FieldError{Field: "server.rate_limit.burst", Message: "must be at least 1"})
	}
	if cfg.MaxConcurrent < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.max_concurrent", Message: "must not be negative"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.idle_timeout", Message: "must not be negative"})
	}

	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxDepth < 1 {
		errs = append(errs, FieldError{Field: "engine.max_depth", Message: "must be at least 1"})
	}
	if cfg.MaxASTDepth < 1 || cfg.MaxASTDepth > DefaultEngineMaxASTDepth {
		errs = append(errs, FieldError{
			Field:   "engine.max_ast_depth",
			Message: fmt.Sprintf("must be between 1 and %d", DefaultEngineMaxASTDepth),
		})
	}
	if cfg.MaxCombine < 1 {
		errs = append(errs, FieldError{Field: "engine.max_combine", Message: "must be at least 1"})
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	if !validBackends[cfg.Backend] {
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sql'", cfg.Backend),
		})
	}

	if cfg.Backend == "sql" {
		if !validDrivers[cfg.Driver] {
			errs = append(errs, FieldError{
				Field:   "storage.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite', 'sqlite3', 'pgx', or 'mysql'", cfg.Driver),
			})
		}
		if cfg.DSN == "" {
			errs = append(errs, FieldError{Field: "storage.dsn", Message: "dsn is required for the sql backend"})
		}
		if cfg.MaxOpenConns < 0 {
			errs = append(errs, FieldError{Field: "storage.max_open_conns", Message: "must not be negative"})
		}
		if cfg.MaxIdleConns < 0 {
			errs = append(errs, FieldError{Field: "storage.max_idle_conns", Message: "must not be negative"})
		}
	}

	if cfg.ListDefaultLimit < 1 {
		errs = append(errs, FieldError{Field: "storage.list_default_limit", Message: "must be at least 1"})
	}
	if cfg.ListMaxLimit < cfg.ListDefaultLimit {
		errs = append(errs, FieldError{
			Field:   "storage.list_max_limit",
			Message: fmt.Sprintf("must be at least list_default_limit (%d)", cfg.ListDefaultLimit),
		})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "storage.retention.days", Message: "must not be negative"})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "storage.retention.max_records", Message: "must not be negative"})
	}
	if cfg.Retention.Enabled {
		if _, err := scheduleParser.Parse(cfg.Retention.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "storage.retention.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Retention.Schedule, err),
			})
		}
	}

	return errs
}

func validateCatalog(cfg *CatalogConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.Path == "" {
		errs = append(errs, FieldError{Field: "catalog.path", Message: "path is required when the catalog is enabled"})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{Field: "catalog.debounce", Message: "must not be negative"})
	}
	if cfg.Git.Enabled {
		if cfg.Watch {
			errs = append(errs, FieldError{Field: "catalog.watch", Message: "cannot be combined with catalog.git; the clone is polled instead"})
		}
		errs = append(errs, validateCatalogGit(&cfg.Git)...)
	}

	return errs
}

func validateCatalogGit(cfg *CatalogGitConfig) []FieldError {
	var errs []FieldError

	if cfg.Repository == "" {
		errs = append(errs, FieldError{Field: "catalog.git.repository", Message: "repository is required when git is enabled"})
	}
	if cfg.Branch == "" {
		errs = append(errs, FieldError{Field: "catalog.git.branch", Message: "branch is required"})
	}
	if cfg.LocalPath == "" {
		errs = append(errs, FieldError{Field: "catalog.git.local_path", Message: "local path is required"})
	}
	if cfg.Depth < 0 {
		errs = append(errs, FieldError{Field: "catalog.git.depth", Message: "must not be negative"})
	}
	if cfg.PollInterval < 0 {
		errs = append(errs, FieldError{Field: "catalog.git.poll_interval", Message: "must not be negative"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "catalog.git.timeout", Message: "must be positive"})
	}

	switch {
	case !validGitAuth[cfg.Auth.Type]:
		errs = append(errs, FieldError{
			Field:   "catalog.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q: must be 'none', 'token', or 'ssh'", cfg.Auth.Type),
		})
	case cfg.Auth.Type == "token" && cfg.Auth.Token == "":
		errs = append(errs, FieldError{Field: "catalog.git.auth.token", Message: "token is required for token auth"})
	case cfg.Auth.Type == "ssh" && cfg.Auth.SSHKeyPath == "":
		errs = append(errs, FieldError{Field: "catalog.git.auth.ssh_key_path", Message: "key path is required for ssh auth"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" || cfg.Metrics.Path[0] != '/' {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
		}
		for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
			if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
				errs = append(errs, FieldError{
					Field:   "telemetry.metrics.duration_buckets",
					Message: "buckets must be strictly increasing",
				})
				break
			}
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
