package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/internal/adapters/ai"
	"github.com/selivandex/marketmood/internal/adapters/clickhouse"
	"github.com/selivandex/marketmood/internal/adapters/config"
	"github.com/selivandex/marketmood/internal/adapters/corpus"
	"github.com/selivandex/marketmood/internal/adapters/database"
	sentryTracker "github.com/selivandex/marketmood/internal/adapters/errors/sentry"
	"github.com/selivandex/marketmood/internal/adapters/market"
	redisAdapter "github.com/selivandex/marketmood/internal/adapters/redis"
	"github.com/selivandex/marketmood/internal/adapters/reddit"
	"github.com/selivandex/marketmood/internal/adapters/telegram"
	"github.com/selivandex/marketmood/internal/api"
	"github.com/selivandex/marketmood/internal/health"
	"github.com/selivandex/marketmood/internal/metrics"
	"github.com/selivandex/marketmood/internal/pipeline"
	"github.com/selivandex/marketmood/internal/sentiment"
	"github.com/selivandex/marketmood/internal/workers"
	"github.com/selivandex/marketmood/pkg/logger"
)

// analysisStore is what both the pipeline and the API need from storage
type analysisStore interface {
	pipeline.AnalysisWriter
	api.AnalysisReader
}

// infrastructure holds the connections every command shares
type infrastructure struct {
	db         *database.DB
	redis      *redisAdapter.Client
	clickhouse *database.DB
}

// application is the fully wired process
type application struct {
	cfg      *config.Config
	infra    *infrastructure
	registry *prometheus.Registry
	metrics  *metrics.PipelineMetrics
	runs     *health.RunTracker

	corpus   *corpus.Repository
	analyses analysisStore
	mentions *clickhouse.Repository
	recorder *clickhouse.MentionRecorder
	tracker  *sentryTracker.Tracker

	pipeline  *pipeline.Pipeline
	scorers   map[string]sentiment.Scorer
	collector *workers.CollectorWorker
}

func initConfig(validate bool) (*config.Config, error) {
	load := config.Load
	if !validate {
		load = config.LoadUnvalidated
	}

	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	err = logger.Init(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

func initInfrastructure(cfg *config.Config) (*infrastructure, error) {
	infra := &infrastructure{}

	db, err := initDatabase(cfg)
	if err != nil {
		return nil, err
	}
	infra.db = db

	if cfg.Redis.Enabled {
		redisClient, err := redisAdapter.New(&cfg.Redis)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		infra.redis = redisClient
	} else {
		logger.Info("redis disabled, analysis cache and run lock are off")
	}

	if cfg.ClickHouse.Enabled {
		ch, err := initClickHouse(cfg)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.clickhouse = ch
	}

	return infra, nil
}

func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := database.RunMigrations(db.Conn(), cfg.Database.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func initClickHouse(cfg *config.Config) (*database.DB, error) {
	ch, err := database.NewClickHouse(&cfg.ClickHouse)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := database.ApplyClickHouseSchema(ctx, ch.DB()); err != nil {
		ch.Close()
		return nil, err
	}

	return ch, nil
}

// Close releases connections in reverse order of creation
func (i *infrastructure) Close() {
	if i.clickhouse != nil {
		if err := i.clickhouse.Close(); err != nil {
			logger.Error("clickhouse close error", zap.Error(err))
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			logger.Error("redis close error", zap.Error(err))
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			logger.Error("database close error", zap.Error(err))
		}
	}
}

func newApplication(cfg *config.Config, infra *infrastructure) (*application, error) {
	app := &application{
		cfg:      cfg,
		infra:    infra,
		registry: prometheus.NewRegistry(),
		corpus:   corpus.NewRepository(infra.db.DB()),
		runs:     health.NewRunTracker(),
	}

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.NewPipelineMetrics(app.registry)

	var store analysisStore = market.NewRepository(infra.db.DB())
	if infra.redis != nil {
		store = redisAdapter.NewAnalysisCache(store, infra.redis.Cache(), cfg.Redis.CacheTTL)
	}
	app.analyses = store

	if cfg.Reddit.Enabled {
		app.collector = workers.NewCollectorWorker(reddit.NewClient(cfg.Reddit), app.corpus, app.metrics)
	}

	if err := app.initPipeline(); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func (a *application) initPipeline() error {
	client, err := ai.NewDeepSeekClient(a.cfg.DeepSeek)
	if err != nil {
		return fmt.Errorf("failed to create deepseek client: %w", err)
	}

	prompts, err := ai.LoadPrompts()
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	local := sentiment.NewLocalScorer(nil)
	a.scorers = map[string]sentiment.Scorer{
		"local":  local,
		"remote": ai.NewRemoteScorer(client, prompts),
	}

	summarizer := ai.NewNarrativeSummarizer(client, prompts, a.cfg.DeepSeek.Timeout, a.cfg.Pipeline.MaxPromptChars)
	assembler := pipeline.NewAssembler(local, summarizer, a.analyses, a.cfg.Pipeline.MaxWords, a.cfg.Pipeline.Workers)

	observers := []pipeline.RunObserver{a.metrics, a.runs}

	if a.infra.clickhouse != nil {
		a.mentions = clickhouse.NewRepository(a.infra.clickhouse.DB())
		a.recorder = clickhouse.NewMentionRecorder(a.mentions, 0, a.cfg.ClickHouse.MaxBatch, a.cfg.ClickHouse.MaxWait)
		observers = append(observers, a.recorder)
	}

	if a.cfg.Sentry.DSN != "" {
		tracker, err := sentryTracker.New(a.cfg.Sentry.DSN, a.cfg.App.Env)
		if err != nil {
			// tracking is optional
			logger.Warn("failed to initialize sentry", zap.Error(err))
		} else {
			a.tracker = tracker
			observers = append(observers, tracker)
		}
	}

	if a.cfg.Telegram.BotToken != "" && a.cfg.Telegram.ChatID != 0 {
		notifier, err := telegram.NewNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID)
		if err != nil {
			logger.Warn("failed to initialize telegram notifier", zap.Error(err))
		} else {
			observers = append(observers, notifier)
		}
	}

	a.pipeline = pipeline.New(a.corpus, assembler, a.cfg.Pipeline.Window, pipeline.WithObservers(observers...))

	logger.Info("pipeline initialized",
		zap.Int("observers", len(observers)),
		zap.Duration("window", a.cfg.Pipeline.Window),
		zap.Int("workers", a.cfg.Pipeline.Workers),
	)

	return nil
}

func (a *application) apiDeps() api.Deps {
	deps := api.Deps{
		Analyses: a.analyses,
		Content:  a.corpus,
		Pipeline: a.pipeline,
		Scorers:  a.scorers,
		Gatherer: a.registry,
	}
	if a.mentions != nil {
		deps.Mentions = a.mentions
	}
	return deps
}

// runLock returns nil when redis is off; the scheduled run is then unguarded
func (a *application) runLock() workers.DateLock {
	if a.infra.redis == nil {
		return nil
	}
	return redisAdapter.NewRunLock(a.infra.redis.LockManager(), a.infra.redis.Cache(), a.cfg.Pipeline.LockTTL)
}

// Close flushes observers. Connections belong to infrastructure.
func (a *application) Close() {
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			logger.Error("mention recorder close error", zap.Error(err))
		}
	}
	if a.tracker != nil {
		a.tracker.Flush(2 * time.Second)
	}
}
