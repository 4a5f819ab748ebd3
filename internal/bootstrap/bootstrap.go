// Package bootstrap builds the services shared by the API server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	config "order-forecast-api/configs"
	"order-forecast-api/pkg/airtable"
	"order-forecast-api/pkg/logging"
	"order-forecast-api/pkg/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	Pipeline *config.PipelineConfig
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *services.PipelineMetrics

	Store      services.DataStore
	Cache      *services.TableCache // nil when REDIS_URL is empty or unreachable
	Forecaster *services.ForecastModelManager
	Forecasts  *services.PipelineService
	Records    *services.RecordsService
	Sessions   *services.SessionStore
	Location   *time.Location
}

// New wires the application from cfg. The logger is built from cfg.Environment
// unless one is supplied.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.AirtableBaseID == "" || cfg.AirtableAPIKey == "" {
		return nil, errors.New("AIRTABLE_BASE_ID and AIRTABLE_API_KEY must be set")
	}

	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Environment)
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	pipelineCfg, err := config.LoadPipelineConfig(cfg.PipelineConfigPath)
	if err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	registry := prometheus.NewRegistry()
	metrics := services.NewPipelineMetrics(registry, cfg.Environment)

	client := airtable.NewClient(cfg.AirtableBaseID, cfg.AirtableAPIKey,
		airtable.WithBaseURL(cfg.AirtableBaseURL),
		airtable.WithTimeout(time.Duration(cfg.AirtableTimeoutSeconds)*time.Second),
		airtable.WithRetry(uint64(max(cfg.AirtableMaxRetries, 0)), 500*time.Millisecond),
		airtable.WithObserver(metrics.ObserveStoreRequest),
	)

	app := &App{
		Config:   cfg,
		Pipeline: pipelineCfg,
		Logger:   logger,
		Registry: registry,
		Metrics:  metrics,
		Store:    client,
		Location: location,
	}

	if cfg.RedisURL != "" {
		app.Cache = connectCache(ctx, cfg, logger)
		if app.Cache != nil {
			app.Store = services.NewCachedStore(client, app.Cache, logger)
		}
	}

	app.Forecaster, err = services.NewForecastModelManager(pipelineCfg.Forecast.IntervalWidth, logger, metrics)
	if err != nil {
		return nil, err
	}

	tables := services.TableNames{
		Orders:     cfg.AirtableOrdersTable,
		OrderLines: cfg.AirtableLinesTable,
		Products:   cfg.AirtableProductsTable,
		Customers:  cfg.AirtableCustomersTable,
	}
	app.Forecasts = services.NewPipelineService(app.Store, app.Forecaster, services.PipelineOptions{
		Tables:      tables,
		Fields:      pipelineCfg.Fields,
		HorizonDays: pipelineCfg.Forecast.HorizonDays,
		Classifier: services.ClassifierConfig{
			Trees:     pipelineCfg.Classifier.Trees,
			Seed:      pipelineCfg.Classifier.Seed,
			TestRatio: pipelineCfg.Classifier.TestRatio,
		},
	}, logger, metrics)
	app.Records = services.NewRecordsService(app.Store, tables, pipelineCfg.Fields, logger)
	app.Sessions = services.NewSessionStore(time.Duration(cfg.SessionIdleMinutes)*time.Minute, logger, metrics)

	logger.Info("application wired",
		zap.String("environment", cfg.Environment),
		zap.String("airtable_base", cfg.AirtableBaseID),
		zap.String("airtable_token", logging.MaskSecret(cfg.AirtableAPIKey)),
		zap.Bool("snapshot_cache", app.Cache != nil),
		zap.Int("horizon_days", pipelineCfg.Forecast.HorizonDays),
	)
	return app, nil
}

// connectCache returns nil when Redis cannot be used; the store is then read directly.
func connectCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) *services.TableCache {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, snapshot cache disabled", zap.Error(err))
		return nil
	}
	cache, err := services.NewTableCache(opts, "order-forecast", time.Duration(cfg.SnapshotTTLSeconds)*time.Second)
	if err != nil {
		logger.Warn("snapshot cache disabled", zap.Error(err))
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, snapshot cache disabled", zap.Error(err))
		_ = cache.Close()
		return nil
	}
	return cache
}

// Close releases external connections and flushes the logger.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("failed to close snapshot cache", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
