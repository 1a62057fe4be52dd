// Package app assembles the prediction service from configuration. Both the
// HTTP server and the CLI start here.
package app

import (
	"context"
	"fmt"
	"time"

	"placement-predictor/internal/backend"
	"placement-predictor/internal/common/config"
	"placement-predictor/internal/common/database"
	"placement-predictor/internal/common/logger"
	"placement-predictor/internal/common/observability"
	"placement-predictor/internal/features"
	"placement-predictor/internal/pipeline"
	"placement-predictor/internal/prediction"
	"placement-predictor/internal/results"
	"placement-predictor/pkg/registry"
)

// Options tunes what Build wires beyond the core pipeline.
type Options struct {
	// ServiceName labels OpenTelemetry metrics. Empty disables them.
	ServiceName string
	// ConnectRetries bounds connection attempts for postgres and redis.
	ConnectRetries int
	RetryDelay     time.Duration
}

// App holds the assembled service and the resources it owns.
type App struct {
	Config   *config.Config
	Schema   *features.Schema
	Registry *registry.Registry
	Service  *prediction.Service
	Obs      *observability.Observability

	log     logger.Logger
	closers []func() error
}

// Build loads the schema and every backend, then wires persistence. Any
// artifact problem fails startup; the registry is sealed before return.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	if opts.ConnectRetries <= 0 {
		opts.ConnectRetries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	schema, err := features.LoadSchema(cfg.Predictor.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("load feature schema: %w", err)
	}
	log.Info("Feature schema loaded", map[string]interface{}{
		"version":     schema.Version,
		"features":    schema.NumFeatures(),
		"fingerprint": schema.Fingerprint(),
	})

	manifest, err := registry.LoadManifest(cfg.Predictor.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("load model manifest: %w", err)
	}
	reg := registry.New()
	if err := backend.LoadAll(manifest, reg, schema.NumFeatures(), log); err != nil {
		return nil, fmt.Errorf("load backends: %w", err)
	}
	reg.Seal()
	if _, err := reg.Resolve(cfg.Predictor.DefaultModel); err != nil {
		return nil, fmt.Errorf("default model: %w", err)
	}

	a := &App{Config: cfg, Schema: schema, Registry: reg, log: log}
	svcOpts, err := a.wireStores(ctx, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	if opts.ServiceName != "" {
		a.Obs = observability.New(opts.ServiceName)
		svcOpts = append(svcOpts, prediction.WithObservability(a.Obs))
	}

	threshold := cfg.Predictor.DefaultThreshold
	a.Service = prediction.NewService(
		pipeline.New(schema, reg, log),
		results.NewWriter(cfg.Predictor.PredictionsDir, log),
		prediction.Config{
			DefaultModel:     cfg.Predictor.DefaultModel,
			DefaultThreshold: &threshold,
			UploadDir:        cfg.Server.UploadDir,
		},
		log,
		svcOpts...,
	)
	log.Info("Prediction service ready", map[string]interface{}{
		"models":       reg.Names(),
		"defaultModel": cfg.Predictor.DefaultModel,
	})
	return a, nil
}

func (a *App) wireStores(ctx context.Context, opts Options) ([]prediction.Option, error) {
	var out []prediction.Option
	cfg := a.Config.Database

	if cfg.Postgres.Enabled {
		var pg *database.PostgresClient
		err := RetryWithBackoff(ctx, func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				_ = pg.Close()
				return err
			}
			return nil
		}, opts.ConnectRetries, opts.RetryDelay, a.log, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		out = append(out, prediction.WithLedger(results.NewPostgresLedger(pg.DB, a.log)))
		a.log.Info("PostgreSQL connected successfully", nil)
	}

	if cfg.Redis.Enabled {
		var rdb *database.RedisClient
		err := RetryWithBackoff(ctx, func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Redis)
			if err != nil {
				return err
			}
			if err := rdb.Ping(ctx); err != nil {
				_ = rdb.Close()
				return err
			}
			return nil
		}, opts.ConnectRetries, opts.RetryDelay, a.log, "Redis connection")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		ttl := time.Duration(cfg.Redis.CacheTTL) * time.Second
		out = append(out, prediction.WithCache(prediction.NewCache(rdb, ttl, a.log)))
		a.log.Info("Redis connected successfully", nil)
	}
	return out, nil
}

// Close releases database connections and flushes metrics.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("Close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
	a.Obs.Shutdown()
}

// RetryWithBackoff runs operation until it succeeds, doubling the delay
// between attempts. It gives up early if ctx is done.
func RetryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", operationName, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
