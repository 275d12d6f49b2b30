package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "RULER_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data, path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention RULER_SECTION_FIELD (e.g., RULER_SERVER_LISTEN_ADDRESS) and
// always take precedence over the file.
//
// An empty path skips the file and starts from defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if cfg, err = parse(data, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func parse(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// envOverride binds one environment variable to one configuration field.
type envOverride struct {
	key   string
	apply func(cfg *Config, val string) error
}

func stringVar(dst func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		*dst(cfg) = val
		return nil
	}
}

func intVar(dst func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*dst(cfg) = i
		return nil
	}
}

func int64Var(dst func(*Config) *int64) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		*dst(cfg) = i
		return nil
	}
}

func boolVar(dst func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*dst(cfg) = b
		return nil
	}
}

func floatVar(dst func(*Config) *float64) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		*dst(cfg) = f
		return nil
	}
}

func durationVar(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*dst(cfg) = d
		return nil
	}
}

func listVar(dst func(*Config) *[]string) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst(cfg) = out
		return nil
	}
}

var envOverrides = []envOverride{
	// Server
	{"SERVER_LISTEN_ADDRESS", stringVar(func(c *Config) *string { return &c.Server.ListenAddress })},
	{"SERVER_READ_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ReadTimeout })},
	{"SERVER_WRITE_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.WriteTimeout })},
	{"SERVER_IDLE_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.IdleTimeout })},
	{"SERVER_SHUTDOWN_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout })},
	{"SERVER_MAX_BODY_BYTES", int64Var(func(c *Config) *int64 { return &c.Server.MaxBodyBytes })},
	{"SERVER_TLS_ENABLED", boolVar(func(c *Config) *bool { return &c.Server.TLS.Enabled })},
	{"SERVER_TLS_CERT_FILE", stringVar(func(c *Config) *string { return &c.Server.TLS.CertFile })},
	{"SERVER_TLS_KEY_FILE", stringVar(func(c *Config) *string { return &c.Server.TLS.KeyFile })},
	{"SERVER_TLS_CLIENT_CA_FILE", stringVar(func(c *Config) *string { return &c.Server.TLS.ClientCAFile })},
	{"SERVER_RATE_LIMIT_ENABLED", boolVar(func(c *Config) *bool { return &c.Server.RateLimit.Enabled })},
	{"SERVER_RATE_LIMIT_REQUESTS_PER_SECOND", floatVar(func(c *Config) *float64 { return &c.Server.RateLimit.RequestsPerSecond })},
	{"SERVER_RATE_LIMIT_BURST", int64Var(func(c *Config) *int64 { return &c.Server.RateLimit.Burst })},

	// Engine
	{"ENGINE_MAX_DEPTH", intVar(func(c *Config) *int { return &c.Engine.MaxDepth })},
	{"ENGINE_MAX_AST_DEPTH", intVar(func(c *Config) *int { return &c.Engine.MaxASTDepth })},
	{"ENGINE_MAX_COMBINE", intVar(func(c *Config) *int { return &c.Engine.MaxCombine })},

	// Storage
	{"STORAGE_BACKEND", stringVar(func(c *Config) *string { return &c.Storage.Backend })},
	{"STORAGE_DRIVER", stringVar(func(c *Config) *string { return &c.Storage.Driver })},
	{"STORAGE_DSN", stringVar(func(c *Config) *string { return &c.Storage.DSN })},
	{"STORAGE_MAX_OPEN_CONNS", intVar(func(c *Config) *int { return &c.Storage.MaxOpenConns })},
	{"STORAGE_RETENTION_ENABLED", boolVar(func(c *Config) *bool { return &c.Storage.Retention.Enabled })},
	{"STORAGE_RETENTION_DAYS", intVar(func(c *Config) *int { return &c.Storage.Retention.Days })},
	{"STORAGE_RETENTION_MAX_RECORDS", int64Var(func(c *Config) *int64 { return &c.Storage.Retention.MaxRecords })},
	{"STORAGE_RETENTION_SCHEDULE", stringVar(func(c *Config) *string { return &c.Storage.Retention.Schedule })},

	// Catalog
	{"CATALOG_ENABLED", boolVar(func(c *Config) *bool { return &c.Catalog.Enabled })},
	{"CATALOG_PATH", stringVar(func(c *Config) *string { return &c.Catalog.Path })},
	{"CATALOG_WATCH", boolVar(func(c *Config) *bool { return &c.Catalog.Watch })},
	{"CATALOG_GIT_ENABLED", boolVar(func(c *Config) *bool { return &c.Catalog.Git.Enabled })},
	{"CATALOG_GIT_REPOSITORY", stringVar(func(c *Config) *string { return &c.Catalog.Git.Repository })},
	{"CATALOG_GIT_BRANCH", stringVar(func(c *Config) *string { return &c.Catalog.Git.Branch })},
	{"CATALOG_GIT_TOKEN", stringVar(func(c *Config) *string { return &c.Catalog.Git.Auth.Token })},
	{"SECRETS_DIR", stringVar(func(c *Config) *string { return &c.Secrets.Dir })},

	// Telemetry
	{"TELEMETRY_LOGGING_LEVEL", stringVar(func(c *Config) *string { return &c.Telemetry.Logging.Level })},
	{"TELEMETRY_LOGGING_FORMAT", stringVar(func(c *Config) *string { return &c.Telemetry.Logging.Format })},
	{"TELEMETRY_LOGGING_REDACT_ATTRIBUTES", listVar(func(c *Config) *[]string { return &c.Telemetry.Logging.RedactAttributes })},
	{"TELEMETRY_METRICS_ENABLED", boolVar(func(c *Config) *bool { return &c.Telemetry.Metrics.Enabled })},
	{"TELEMETRY_METRICS_PATH", stringVar(func(c *Config) *string { return &c.Telemetry.Metrics.Path })},
	{"TELEMETRY_TRACING_ENABLED", boolVar(func(c *Config) *bool { return &c.Telemetry.Tracing.Enabled })},
	{"TELEMETRY_TRACING_ENDPOINT", stringVar(func(c *Config) *string { return &c.Telemetry.Tracing.Endpoint })},
	{"TELEMETRY_TRACING_SAMPLE_RATIO", floatVar(func(c *Config) *float64 { return &c.Telemetry.Tracing.SampleRatio })},
}

// applyEnvOverrides applies RULER_* environment variables to cfg. A value
// that cannot be parsed for its field is reported rather than ignored.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []FieldError
	for _, o := range envOverrides {
		val, ok := lookup(EnvPrefix + o.key)
		if !ok || val == "" {
			continue
		}
		if err := o.apply(cfg, val); err != nil {
			errs = append(errs, FieldError{
				Field:   EnvPrefix + o.key,
				Message: fmt.Sprintf("invalid value %q: %v", val, err),
			})
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment overrides: %w", ValidationError{Errors: errs})
	}
	return nil
}
