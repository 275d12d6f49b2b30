package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/ruler/pkg/cli"
	"mercator-hq/ruler/pkg/config"
	"mercator-hq/ruler/pkg/rules"
	"mercator-hq/ruler/pkg/security/secrets"
	"mercator-hq/ruler/pkg/telemetry/logging"
)

// defaultConfigFile is read when --config is not given and the file exists.
const defaultConfigFile = "ruler.yaml"

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ruler",
	Short: "Ruler - attribute rule engine",
	Long: `Ruler parses rule strings into trees, combines them with AND and
evaluates them against attribute records.

Rules compare attributes with literals and join comparisons with AND and OR:

  (age > 30 AND department = 'Sales') OR (age < 25 AND department = 'Marketing')

AND binds tighter than OR, parentheses group, and evaluation never
short-circuits: a missing attribute anywhere in a rule is always reported.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

// errReported marks a failure whose details the command already printed.
var errReported = errors.New("failure reported")

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./ruler.yaml when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
}

// loadConfig reads the configuration named by --config, the default file
// when it exists, or built-in defaults. Environment overrides apply in every
// case.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, err
	}
	if err := resolveSecrets(context.Background(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveSecrets replaces ${secret:name} references in the storage DSN and
// the catalog repository credentials.
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"storage.dsn", &cfg.Storage.DSN},
		{"catalog.git.auth.token", &cfg.Catalog.Git.Auth.Token},
		{"catalog.git.auth.ssh_key_passphrase", &cfg.Catalog.Git.Auth.SSHKeyPassphrase},
	}
	pending := fields[:0]
	for _, f := range fields {
		if secrets.HasReferences(*f.value) {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	providers := []secrets.Provider{secrets.NewEnvProvider(cfg.Secrets.EnvPrefix)}
	if cfg.Secrets.Dir != "" {
		fp, err := secrets.NewFileProvider(cfg.Secrets.Dir)
		if err != nil {
			return err
		}
		providers = append(providers, fp)
	}

	resolver := secrets.NewResolver(commandLogger(), providers...)
	for _, f := range pending {
		value, err := resolver.Resolve(ctx, *f.value)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = value
	}
	return nil
}

// commandLogger returns the logger for one-shot commands: silent unless
// --verbose is set.
func commandLogger() *slog.Logger {
	if !verbose {
		return logging.Discard()
	}
	logger, err := logging.New(config.LoggingConfig{Level: "debug", Format: "text"}, os.Stderr)
	if err != nil {
		return logging.Discard()
	}
	return logger
}

// newEngine builds an engine with the configured limits.
func newEngine(cfg *config.Config, logger *slog.Logger) *rules.Engine {
	return rules.NewEngine(logger).
		WithMaxDepth(cfg.Engine.MaxDepth).
		WithMaxASTDepth(cfg.Engine.MaxASTDepth)
}

// engineFromFlags loads configuration and builds an engine for commands
// that only need the rule limits.
func engineFromFlags() (*rules.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newEngine(cfg, commandLogger()), nil
}

// newFormatter validates a --format value and returns its formatter.
func newFormatter(value string) (cli.OutputFormat, cli.Formatter, error) {
	format, err := cli.ParseFormat(value)
	if err != nil {
		return "", nil, err
	}
	return format, cli.NewFormatter(format), nil
}
