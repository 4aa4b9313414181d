package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/learnwithjiji/jiji/internal/auth"
	"github.com/learnwithjiji/jiji/internal/catalog"
	"github.com/learnwithjiji/jiji/internal/config"
	"github.com/learnwithjiji/jiji/internal/logging"
	"github.com/learnwithjiji/jiji/internal/metrics"
	"github.com/learnwithjiji/jiji/internal/service"
	"github.com/learnwithjiji/jiji/internal/storage"
	"github.com/learnwithjiji/jiji/internal/text"
)

// app is the wired object graph behind a command.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	store   storage.Storage
	metrics *metrics.Metrics
	index   *catalog.Index
	matcher catalog.Matcher
	svc     *service.Service
}

// loadConfig reads the config file, then applies environment variables and
// finally the global flags.
func loadConfig(opts *GlobalOptions) (*config.Config, error) {
	cfg, err := config.LoadOrCreate(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if opts.Store != "" {
		cfg.Store.Driver = opts.Store
	}
	if opts.DSN != "" {
		cfg.Store.DSN = opts.DSN
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, &config.InvalidConfigError{
			Path:    opts.ConfigPath,
			Message: err.Error(),
			Hint:    "Fix the value in the config file, the environment or the flags",
		}
	}
	return cfg, nil
}

// newStore creates the store selected by cfg without opening it.
func newStore(cfg *config.Config, logger *zap.Logger) storage.Storage {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore()
	case config.DriverPostgres:
		return storage.NewPostgresStore(cfg.Store.DSN, storage.WithLogger(logger))
	default:
		return storage.NewSQLiteStore(cfg.Store.DSN, storage.WithLogger(logger))
	}
}

// newApp wires config, logging, storage, matching and the service. A store
// that fails to open leaves the app degraded rather than failing.
func newApp(ctx context.Context, opts *GlobalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{
		cfg:     cfg,
		log:     logger,
		store:   newStore(cfg, logger.Logger),
		metrics: metrics.New(),
	}

	if err := a.store.Init(ctx); err != nil {
		logger.Warn("store unavailable, continuing without persistence",
			zap.String("driver", cfg.Store.Driver),
			zap.Error(err),
		)
	}

	extractor := text.NewExtractor(cfg.Keywords)
	switch cfg.Catalog.Mode {
	case catalog.ModeIndex:
		a.index = catalog.NewIndex(a.store, extractor, logger.Logger)
		if err := a.index.Rebuild(ctx); err != nil {
			logger.Warn("catalog index not built", zap.Error(err))
		}
		a.matcher = a.index
	default:
		a.matcher = catalog.NewScanner(a.store, extractor, cfg.Catalog.ScanLimit)
	}

	a.svc = service.New(a.store, a.matcher,
		service.WithLogger(logger.Logger),
		service.WithRecorder(a.metrics),
		service.WithMaxHistoryLimit(cfg.History.MaxLimit),
	)
	return a, nil
}

// resolver returns the bearer token resolver configured for the app.
func (a *app) resolver() (auth.Resolver, error) {
	if a.cfg.Auth.JWTSecret == "" {
		a.log.Info("no jwt secret configured, all requests are anonymous")
		return auth.Anonymous{}, nil
	}
	return auth.NewJWTResolver(a.cfg.Auth.JWTSecret, a.cfg.Auth.JWTAudience, a.log.Logger)
}

// Close releases the index, the store and flushes the logger.
func (a *app) Close() error {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.log.Warn("failed to close catalog index", zap.Error(err))
		}
	}
	err := a.store.Close()
	_ = a.log.Sync()
	return err
}
