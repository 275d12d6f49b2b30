// Package config provides configuration management for the ruler service.
//
// Configuration is read from a YAML file, completed with defaults, overridden
// by environment variables, and validated before use.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("ruler.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("ruler.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RULER_SECTION_FIELD:
//
//   - RULER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - RULER_STORAGE_DSN overrides storage.dsn
//   - RULER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A variable whose value cannot be parsed for its field fails loading.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// The loaded *Config is passed explicitly to the components that need it;
// there is no process-wide instance.
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:5000"
//
//	engine:
//	  max_depth: 200
//
//	storage:
//	  backend: "sql"
//	  driver: "sqlite"
//	  dsn: "data/rules.db"
//	  retention:
//	    enabled: true
//	    days: 30
//
//	catalog:
//	  enabled: true
//	  path: "./rules"
//	  watch: true
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//	    redact_attributes: ["ssn", "email"]
//	  metrics:
//	    enabled: true
package config
