package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/internal/adapters/corpus"
	"github.com/selivandex/marketmood/internal/adapters/database"
	"github.com/selivandex/marketmood/internal/adapters/reddit"
	"github.com/selivandex/marketmood/internal/api"
	"github.com/selivandex/marketmood/internal/health"
	"github.com/selivandex/marketmood/internal/workers"
	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/models"
	"github.com/selivandex/marketmood/pkg/worker"
)

const shutdownTimeout = 25 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "marketmood",
		Short:         "Daily market sentiment from social media",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional; real environment wins
			_ = godotenv.Load()
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCollectCmd())
	rootCmd.AddCommand(newMigrateCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, the collector and the scheduled daily pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := initConfig(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("MarketMood starting",
		zap.String("env", cfg.App.Env),
		zap.String("schedule", cfg.Pipeline.Schedule),
	)

	infra, err := initInfrastructure(cfg)
	if err != nil {
		return err
	}
	defer infra.Close()

	app, err := newApplication(cfg, infra)
	if err != nil {
		return err
	}
	defer app.Close()

	daily, err := workers.NewDailyPipelineWorker(app.pipeline, app.runLock(), cfg.Pipeline.Schedule)
	if err != nil {
		return err
	}

	checks := map[string]health.Checker{"database": infra.db}
	if infra.redis != nil {
		checks["redis"] = infra.redis
	}
	if infra.clickhouse != nil {
		checks["clickhouse"] = infra.clickhouse
	}
	healthServer := health.NewServer(cfg.App.HealthPort, checks,
		health.WithRunTracker(app.runs, cfg.Pipeline.MaxRunAge),
	)
	apiServer := api.NewServer(cfg.App.HTTPPort, app.apiDeps())

	errCh := make(chan error, 2)
	go func() { errCh <- healthServer.Start() }()
	go func() { errCh <- apiServer.Start() }()

	group := worker.NewGroup(ctx)
	if app.collector != nil {
		group.Add(app.collector, cfg.Reddit.CollectInterval, true)
	}
	group.AddService(daily)
	group.Start()

	healthServer.SetReady(true)
	logger.Info("✅ MarketMood is running",
		zap.String("api_port", cfg.App.HTTPPort),
		zap.String("health_port", cfg.App.HealthPort),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	return shutdown(healthServer, apiServer, group)
}

func shutdown(healthServer *health.Server, apiServer *api.Server, group *worker.Group) error {
	logger.Info("🛑 shutting down...")

	healthServer.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("api server stop error", zap.Error(err))
	}

	group.Stop(shutdownTimeout / 2)

	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Error("health server stop error", zap.Error(err))
	}

	select {
	case <-shutdownCtx.Done():
		logger.Warn("⚠️ shutdown timeout exceeded")
		return fmt.Errorf("graceful shutdown timeout")
	default:
		logger.Info("shutdown completed")
	}

	return nil
}

func newRunCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daily pipeline once and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(true)
			if err != nil {
				return err
			}
			defer logger.Sync()

			infra, err := initInfrastructure(cfg)
			if err != nil {
				return err
			}
			defer infra.Close()

			app, err := newApplication(cfg, infra)
			if err != nil {
				return err
			}
			defer app.Close()

			end := time.Now().UTC()
			if date != "" {
				day, err := time.Parse(models.DateLayout, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", date, err)
				}
				// end of that UTC day, so the run is keyed by it
				end = day.Add(24*time.Hour - time.Second)
			}

			result, err := app.pipeline.RunAt(cmd.Context(), end)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "analyse the day ending at this UTC date (YYYY-MM-DD)")
	return cmd
}

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Fetch one round of posts and comments into the corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := initDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			collector := workers.NewCollectorWorker(
				reddit.NewClient(cfg.Reddit),
				corpus.NewRepository(db.DB()),
				nil,
			)

			stats, err := collector.Collect(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	withMigrator := func(fn func(cmd *cobra.Command, args []string, mg *database.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			mg, err := database.NewMigrator(db.Conn(), cfg.Database.MigrationsPath)
			if err != nil {
				return err
			}
			return fn(cmd, args, mg)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(_ *cobra.Command, _ []string, mg *database.Migrator) error {
			return mg.Up()
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: withMigrator(func(_ *cobra.Command, _ []string, mg *database.Migrator) error {
			return mg.Down()
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(_ *cobra.Command, args []string, mg *database.Migrator) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return mg.Force(version)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: withMigrator(func(cmd *cobra.Command, _ []string, mg *database.Migrator) error {
			version, dirty, err := mg.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		}),
	})

	return cmd
}
