// Package app assembles the comparison service from its configuration: the
// settings store, the round history pipeline, the provider factory and the
// MultiClient that ties them together. The HTTP server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"llm_compare/internal/config"
	"llm_compare/internal/httpapi"
	"llm_compare/internal/logging"
	"llm_compare/internal/metrics"
	"llm_compare/internal/multiclient"
	"llm_compare/internal/providers"
	"llm_compare/internal/queue"
	"llm_compare/internal/ratelimit"
	"llm_compare/internal/storage"
	"llm_compare/internal/utils"
)

// App holds every long-lived component of a running service
type App struct {
	Config  *config.Config
	Client  *multiclient.MultiClient
	Metrics *metrics.Collector
	Limiter ratelimit.Limiter

	DB      *storage.DB            // nil unless a component needs Postgres
	Redis   *storage.RedisClient   // nil unless a component needs Redis
	History *storage.HistoryWorker // nil when round history is disabled
	Rounds  *storage.RoundRepository

	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	roundLogger *logging.RoundLogger
	logger      *utils.Logger
}

// Options tune how New assembles the app
type Options struct {
	// DisableHistory skips the round history pipeline (one-shot CLI commands)
	DisableHistory bool
}

// ConfigureLogging applies LOG_LEVEL, with LOCAL forcing debug output
func ConfigureLogging(cfg *config.Config) {
	level := utils.ParseLogLevel(cfg.LogLevel)
	if cfg.Local {
		level = utils.Debug
	}
	utils.SetDefaultLogLevel(level)
}

// New connects to the configured backends and restores the persisted settings.
// On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, opts Options) (a *App, err error) {
	a = &App{
		Config:  cfg,
		Metrics: metrics.NewCollector(),
		Limiter: ratelimit.NewNoopLimiter(),
		logger:  utils.NewLogger("app"),
	}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	if cfg.NeedsDatabase() {
		if a.DB, err = openDatabase(ctx, cfg.Database); err != nil {
			return a, err
		}
	}
	if cfg.NeedsRedis() {
		if a.Redis, err = openRedis(cfg.Redis); err != nil {
			return a, err
		}
	}

	store, err := a.settingsStore()
	if err != nil {
		return a, err
	}

	var recorder multiclient.RoundRecorder
	if !opts.DisableHistory {
		if err = a.startHistory(ctx); err != nil {
			return a, err
		}
		if a.History != nil {
			recorder = a.History
		}
	}

	if cfg.RateLimit.PerMinute > 0 {
		if a.Limiter, err = ratelimit.New(cfg.RateLimit.Algorithm, a.Redis.Client()); err != nil {
			return a, err
		}
	}

	factory := providers.NewProviderFactory(providers.FactoryConfig{
		HTTPClient: providers.NewHTTPClient(cfg.Dispatcher.RequestTimeout),
		BaseURLs:   cfg.Dispatcher.BaseURLs,
		MaxTokens:  cfg.Dispatcher.MaxTokens,
	})

	a.Client, err = multiclient.New(multiclient.Config{
		Factory:        factory,
		Store:          store,
		Recorder:       recorder,
		Metrics:        a.Metrics,
		CatalogTTL:     cfg.Dispatcher.CatalogTTL,
		MaxConcurrency: cfg.Dispatcher.MaxConcurrency,
		MaxTokens:      cfg.Dispatcher.MaxTokens,
	})
	if err != nil {
		return a, err
	}
	if err = a.Client.Load(ctx); err != nil {
		return a, err
	}

	a.logger.Info("Service assembled",
		"key_store", cfg.Settings.Backend,
		"history_sinks", cfg.History.Sinks,
		"queue", cfg.History.QueueBackend,
		"providers", len(a.Client.ConfiguredProviders()),
	)
	return a, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*storage.DB, error) {
	db, err := storage.NewDB(storage.DBConfig{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func openRedis(cfg config.RedisConfig) (*storage.RedisClient, error) {
	rcfg := storage.DefaultRedisConfig()
	rcfg.Address = cfg.Address
	rcfg.Password = cfg.Password
	rcfg.DB = cfg.DB
	rcfg.PoolSize = cfg.PoolSize
	rcfg.MinIdleConns = cfg.MinIdleConns
	rcfg.DialTimeout = cfg.DialTimeout
	rcfg.ReadTimeout = cfg.ReadTimeout
	rcfg.WriteTimeout = cfg.WriteTimeout

	client, err := storage.NewRedisClient(rcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	return client, nil
}

func (a *App) settingsStore() (storage.SettingsStore, error) {
	cfg := a.Config.Settings
	if cfg.Backend == config.KeyStoreFile {
		return storage.NewFileSettingsStore(cfg.Dir), nil
	}

	encryption, err := storage.NewEncryptionFromBase64(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	switch cfg.Backend {
	case config.KeyStorePostgres:
		return storage.NewPostgresSettingsStore(a.DB, encryption)
	case config.KeyStoreRedis:
		return storage.NewRedisSettingsStore(a.Redis.Client(), encryption)
	default:
		return nil, fmt.Errorf("unknown key store %q", cfg.Backend)
	}
}

// historyWriters builds one writer per configured sink
func (a *App) historyWriters(ctx context.Context) ([]logging.BatchWriter, error) {
	cfg := a.Config
	var writers []logging.BatchWriter
	for _, sink := range cfg.History.Sinks {
		switch sink {
		case config.HistorySinkNone:
		case config.HistorySinkFile:
			rl, err := logging.NewRoundLogger(logging.RoundLoggerConfig{
				FileTemplate:  cfg.RoundLogger.FilePathTemplate,
				MaxSize:       cfg.RoundLogger.MaxSize,
				MaxFiles:      cfg.RoundLogger.MaxFiles,
				BufferSize:    cfg.RoundLogger.BufferSize,
				FlushInterval: cfg.RoundLogger.FlushInterval,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to initialize round logger: %w", err)
			}
			a.roundLogger = rl
			writers = append(writers, rl)
		case config.HistorySinkPostgres:
			a.Rounds = storage.NewRoundRepository(a.DB)
			writers = append(writers, a.Rounds)
		case config.HistorySinkS3:
			w, err := logging.NewS3Writer(ctx, logging.S3Config{
				Bucket:          cfg.S3.Bucket,
				Region:          cfg.S3.Region,
				Prefix:          cfg.S3.Prefix,
				Instance:        cfg.S3.Instance,
				Endpoint:        cfg.S3.Endpoint,
				AccessKeyID:     cfg.S3.AccessKeyID,
				SecretAccessKey: cfg.S3.SecretAccessKey,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to initialize S3 writer: %w", err)
			}
			writers = append(writers, w)
		default:
			return nil, fmt.Errorf("unknown history sink %q", sink)
		}
	}
	return writers, nil
}

func (a *App) startHistory(ctx context.Context) error {
	writers, err := a.historyWriters(ctx)
	if err != nil {
		return err
	}
	if len(writers) == 0 {
		return nil
	}

	var writer storage.HistoryWriter = writers[0]
	if len(writers) > 1 {
		writer = logging.NewMultiWriter(writers...)
	}

	hc := a.Config.History
	qcfg := queue.DefaultConfig(hc.QueueName)
	qcfg.BatchSize = hc.BatchSize
	qcfg.BatchTimeout = hc.BatchTimeout
	qcfg.MaxRetries = hc.MaxRetries
	qcfg.RetryBackoff = hc.RetryBackoff
	qcfg.Capacity = hc.Capacity

	switch hc.QueueBackend {
	case config.QueueBackendRedis:
		if a.queue, err = queue.NewRedisQueue(a.Redis.Client(), qcfg); err != nil {
			return fmt.Errorf("failed to create history queue: %w", err)
		}
		if a.dlq, err = queue.NewRedisDeadLetterQueue(a.Redis.Client(), qcfg); err != nil {
			return fmt.Errorf("failed to create history DLQ: %w", err)
		}
	default:
		a.queue = queue.NewMemoryQueue(qcfg)
		a.dlq = queue.NewMemoryDeadLetterQueue()
	}

	a.History = storage.NewHistoryWorker(a.queue, a.dlq, writer, qcfg)
	// the worker outlives request contexts and is stopped by Close
	a.History.Start(context.WithoutCancel(ctx))
	return nil
}

// HTTPDependencies exposes the app to the HTTP layer
func (a *App) HTTPDependencies() *httpapi.Dependencies {
	deps := &httpapi.Dependencies{
		Client:    a.Client,
		Metrics:   a.Metrics,
		RateLimit: a.Limiter,
		Health:    make(map[string]httpapi.HealthCheck),
	}
	if a.Rounds != nil {
		deps.History = a.Rounds
	}
	if a.History != nil {
		deps.Queue = a.History
	}
	if a.DB != nil {
		deps.Health["database"] = a.DB.Health
	}
	if a.Redis != nil {
		deps.Health["redis"] = a.Redis.Health
	}
	return deps
}

// Close flushes the round history and releases every connection
func (a *App) Close() error {
	var errs []error
	if a.History != nil {
		if err := a.History.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("history worker: %w", err))
		}
	}
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
	}
	if a.dlq != nil {
		errs = append(errs, a.dlq.Close())
	}
	if a.roundLogger != nil {
		a.roundLogger.Shutdown()
	}
	if a.Client != nil {
		errs = append(errs, a.Client.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
