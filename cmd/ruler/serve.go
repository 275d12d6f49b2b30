package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/ruler/pkg/api"
	"mercator-hq/ruler/pkg/api/middleware"
	"mercator-hq/ruler/pkg/catalog"
	catalogGit "mercator-hq/ruler/pkg/catalog/git"
	"mercator-hq/ruler/pkg/cli"
	"mercator-hq/ruler/pkg/config"
	"mercator-hq/ruler/pkg/limits/ratelimit"
	rtls "mercator-hq/ruler/pkg/security/tls"
	"mercator-hq/ruler/pkg/server"
	"mercator-hq/ruler/pkg/store"
	"mercator-hq/ruler/pkg/store/retention"
	"mercator-hq/ruler/pkg/telemetry"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rule API server",
	Long: `Start the HTTP API for creating, combining and evaluating rules.

Created and combined rules are persisted to the configured store. When the
catalog is enabled its named rules are served under /catalog.

Examples:
  # Start with ./ruler.yaml or built-in defaults
  ruler serve

  # Start with a custom config
  ruler serve --config /etc/ruler/ruler.yaml

  # Override the listen address
  ruler serve --listen 0.0.0.0:8080

  # Validate config without starting the server
  ruler serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return cli.NewUsageError(fmt.Sprintf("failed to load config: %v", err))
	}

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewUsageError(err.Error())
	}

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	tel, err := telemetry.New(&cfg.Telemetry, Version, os.Stdout)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	logger := tel.Logger()
	slog.SetDefault(logger)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	srv, err := buildServer(ctx, cfg, tel, logger)
	if err != nil {
		shutdownTelemetry(tel, cfg, logger)
		return cli.NewCommandError("serve", err)
	}

	logger.Info("starting ruler",
		"version", Version,
		"listen_address", cfg.Server.ListenAddress,
		"storage_backend", cfg.Storage.Backend,
		"tls_enabled", cfg.Server.TLS.Enabled,
		"rate_limit_enabled", cfg.Server.RateLimit.Enabled,
		"catalog_enabled", cfg.Catalog.Enabled,
		"metrics_enabled", cfg.Telemetry.Metrics.Enabled,
		"tracing_enabled", cfg.Telemetry.Tracing.Enabled,
	)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

// buildServer wires storage, the catalog and the API into a server. Every
// component started here registers a shutdown hook on the server.
func buildServer(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry, logger *slog.Logger) (*server.Server, error) {
	engine := newEngine(cfg, logger).WithRedactor(tel.Redactor())

	st, err := store.Open(&cfg.Storage, logger, tel.Metrics())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	tel.Health().RegisterCheck("store", st.Ping)

	a := api.New(engine, st, logger).
		WithLimits(cfg.Engine, cfg.Storage).
		WithTracer(tel.Tracer()).
		WithHealth(tel.Health())
	if cfg.Telemetry.Metrics.Enabled {
		a.WithMetrics(tel.Metrics(), cfg.Telemetry.Metrics.Path)
	}

	var (
		scheduler *retention.Scheduler
		watcher   *catalog.Watcher
		syncer    *catalogGit.Syncer
	)
	cleanup := func() {
		if syncer != nil {
			_ = syncer.Stop()
		}
		if watcher != nil {
			_ = watcher.Stop()
		}
		if scheduler != nil {
			scheduler.Stop()
		}
		_ = st.Close()
	}

	if cfg.Storage.Retention.Enabled {
		pruner := retention.NewPruner(st, cfg.Storage.Retention, logger).WithMetrics(tel.Metrics())
		scheduler = retention.NewScheduler(pruner, cfg.Storage.Retention.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to start retention: %w", err)
		}
	}

	if cfg.Catalog.Enabled {
		path := cfg.Catalog.Path
		var repo *catalogGit.Repository
		if cfg.Catalog.Git.Enabled {
			repo, err = catalogGit.NewRepository(&cfg.Catalog.Git, logger)
			if err == nil {
				err = repo.Clone(ctx)
			}
			if err != nil {
				cleanup()
				return nil, fmt.Errorf("failed to clone catalog repository: %w", err)
			}
			path = repo.CatalogPath()
		}

		c := catalog.New(path, engine, logger).WithMetrics(tel.Metrics())
		if err := c.Reload(); err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		tel.Health().RegisterCheck("catalog", c.Check)
		a.WithCatalog(c)

		if repo != nil {
			syncer = catalogGit.NewSyncer(repo, c, cfg.Catalog.Git.PollInterval, logger)
			if err := syncer.Start(ctx); err != nil {
				cleanup()
				return nil, fmt.Errorf("failed to start catalog sync: %w", err)
			}
			tel.Health().RegisterCheck("catalog_git", syncer.Check)
		}

		if cfg.Catalog.Watch {
			watcher, err = catalog.NewWatcher(c, cfg.Catalog.Debounce, logger)
			if err != nil {
				cleanup()
				return nil, err
			}
			go func(w *catalog.Watcher) {
				if err := w.Run(ctx); err != nil {
					logger.Error("catalog watcher failed", "error", err)
				}
			}(watcher)
		}
	}

	tlsConfig, reloader, err := rtls.Build(&cfg.Server.TLS, logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}

	srv := server.NewServer(&cfg.Server, a.Handler(), logger).WithTLS(tlsConfig)
	if reloader != nil {
		reloader.Start(ctx)
		tel.Health().RegisterCheck("tls", reloader.Check)
	}
	if cfg.Server.RateLimit.Enabled {
		limiter := ratelimit.NewLimiter(cfg.Server.RateLimit)
		srv.Use(middleware.RateLimit(limiter, tel.Metrics(), "/health", cfg.Telemetry.Metrics.Path))
	}

	// Hooks run in reverse order: the store closes last.
	srv.OnShutdown(st.Close)
	if scheduler != nil {
		srv.OnShutdown(func() error {
			scheduler.Stop()
			return nil
		})
	}
	if watcher != nil {
		srv.OnShutdown(watcher.Stop)
	}
	if syncer != nil {
		srv.OnShutdown(syncer.Stop)
	}
	srv.OnShutdown(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return tel.Shutdown(ctx)
	})

	return srv, nil
}

func shutdownTelemetry(tel *telemetry.Telemetry, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", "error", err)
	}
}
