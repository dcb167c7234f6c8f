package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/internal/export"
	"github.com/castleryder/dividend-harvest/internal/external/eodhd"
	"github.com/castleryder/dividend-harvest/internal/external/yahoo"
	"github.com/castleryder/dividend-harvest/internal/harvest"
	"github.com/castleryder/dividend-harvest/internal/history"
	"github.com/castleryder/dividend-harvest/internal/ingest"
	"github.com/castleryder/dividend-harvest/internal/snapshot"
	"github.com/castleryder/dividend-harvest/internal/strategyconfig"
	"github.com/castleryder/dividend-harvest/internal/universe"
	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/database"
	"github.com/castleryder/dividend-harvest/pkg/httputil"
	"github.com/castleryder/dividend-harvest/pkg/logger"
	"github.com/castleryder/dividend-harvest/pkg/redis"
)

// redisPrefix namespaces every key this binary writes
const redisPrefix = "harvest"

// app holds the wired dependencies shared by every command
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	strategyHash string

	service  *harvest.Service
	universe *universe.Builder
	store    *snapshot.Store
	exports  *snapshot.Store

	redis   *redis.Client
	mirror  *harvest.RedisMirror
	db      *database.DB
	history *history.Repository
}

// loadConfig reads the environment and applies the global flags
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, logger.New(cfg), nil
}

// bootstrap wires config, upstream provider, cache and optional sinks.
// Redis and PostgreSQL are optional: a failed connection is logged and the
// feature is skipped.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	thresholds, hash, err := strategyconfig.Resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve thresholds: %w", err)
	}
	cfg.Thresholds = thresholds

	a := &app{cfg: cfg, log: log, strategyHash: hash}

	if a.store, err = snapshot.NewStore(cfg.Cache.DataDir, log); err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}
	if a.exports, err = snapshot.NewStore(cfg.Cache.ExportDir, log); err != nil {
		return nil, fmt.Errorf("open export dir: %w", err)
	}

	a.redis, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without it")
		a.redis = redis.NewDisabled()
	}

	universeClient := httputil.New(cfg, log)
	if a.redis.Enabled() {
		universeClient.WithRateLimiter(redis.NewRateLimiter(a.redis, redisPrefix), redis.UniverseRateLimit)
	}
	if a.universe, err = universe.NewFromConfig(cfg.Universe, universeClient, log); err != nil {
		return nil, err
	}

	source, err := a.newSource()
	if err != nil {
		return nil, err
	}

	var tickers harvest.TickerSource
	if source.NeedsTickers() {
		tickers = a.universe
	}

	pipeline := harvest.NewPipeline(thresholds, log)
	a.service = harvest.NewService(source, tickers, pipeline, a.store, harvest.Options{
		TTL:         cfg.Cache.TTL,
		UniverseTTL: cfg.Cache.UniverseTTL,
	}, log)

	if a.redis.Enabled() {
		a.mirror = harvest.NewRedisMirror(redis.NewCache(a.redis, redisPrefix))
		a.service.AddSink(a.mirror)
	}

	a.connectHistory(ctx)

	log.WithFields(map[string]interface{}{
		"provider":      source.Name(),
		"strategy_hash": hash,
		"redis":         a.redis.Enabled(),
		"history":       a.history != nil,
	}).Debug("Application wired")

	return a, nil
}

// newSource selects the upstream adapter named by HARVEST_PROVIDER
func (a *app) newSource() (ingest.Source, error) {
	cfg := a.cfg
	httpClient := httputil.New(cfg, a.log)
	if a.redis.Enabled() {
		httpClient.WithRateLimiter(redis.NewRateLimiter(a.redis, redisPrefix), redis.RateLimitFor(cfg.Provider.Name))
	}

	switch cfg.Provider.Name {
	case config.ProviderEODHD:
		client := eodhd.NewFromConfig(cfg, httpClient, a.log)
		return ingest.NewBulkFetcher(eodhd.NewScreenerProvider(client), a.log), nil

	case config.ProviderEODHDFundamentals:
		// the fetcher retries per ticker
		httpClient.DisableRetry()
		client := eodhd.NewFromConfig(cfg, httpClient, a.log)
		return ingest.NewFetcher(eodhd.NewFundamentalsProvider(client), httputil.PolicyFromConfig(cfg.Fetch), cfg.Fetch.RequestDelay, a.log), nil

	case config.ProviderYahoo:
		return ingest.NewFetcher(yahoo.NewProvider(a.log), httputil.PolicyFromConfig(cfg.Fetch), cfg.Fetch.RequestDelay, a.log), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

// connectHistory enables run history when DATABASE_URL is set
func (a *app) connectHistory(ctx context.Context) {
	db, err := database.New(ctx, a.cfg)
	if errors.Is(err, database.ErrDisabled) {
		return
	}
	if err != nil {
		a.log.WithError(err).Warn("Database unavailable, run history disabled")
		return
	}

	repo := history.NewRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		a.log.WithError(err).Warn("Failed to prepare history schema, run history disabled")
		db.Close()
		return
	}

	a.db = db
	a.history = repo
	a.service.AddSink(history.NewRecorder(repo, a.strategyHash))
}

// exportSink writes the dated CSV after each fresh run
func (a *app) exportSink() harvest.Sink {
	exporter := export.NewExporter(a.exports)
	return harvest.SinkFunc{
		SinkName: "csv",
		Fn: func(_ context.Context, rs *contracts.ResultSet) error {
			_, err := exporter.Export(rs)
			return err
		},
	}
}

// Close releases optional connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Debug("Redis close failed")
		}
	}
}
