// Package app wires configuration into the running services shared by the
// HTTP server and the traffctl command.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/AlexTsimba/traffboard-sub001/internal/cache"
	"github.com/AlexTsimba/traffboard-sub001/internal/config"
	"github.com/AlexTsimba/traffboard-sub001/internal/db"
	"github.com/AlexTsimba/traffboard-sub001/internal/export"
	"github.com/AlexTsimba/traffboard-sub001/internal/ingestion"
	"github.com/AlexTsimba/traffboard-sub001/internal/metrics"
	"github.com/AlexTsimba/traffboard-sub001/internal/middleware"
	"github.com/AlexTsimba/traffboard-sub001/internal/repository"
	"github.com/AlexTsimba/traffboard-sub001/internal/schema"
	"github.com/AlexTsimba/traffboard-sub001/internal/server"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config    config.Config
	Logger    *logrus.Logger
	Conn      *db.Connection
	Redis     *redis.Client
	Metrics   *metrics.Pipeline
	Records   repository.RecordRepository
	Ingestion *ingestion.Service
	Export    *export.Service
}

// New connects to Postgres (and Redis when configured), applies migrations
// when enabled and builds the services. extra options are applied after the
// configured ones.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger, extra ...ingestion.Option) (*App, error) {
	conn, err := db.NewConnection(ctx, cfg.Database.Connection())
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Conn: conn, Metrics: metrics.New()}

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(cfg.Database.Connection().URL()); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("database migrations applied")
	}

	registry := schema.Default()
	a.Records = repository.NewRecordRepository(conn, conn.Pool, registry)
	jobs := repository.NewImportJobRepository(conn.Queries())

	opts := []ingestion.Option{
		ingestion.WithStagingDirectory(cfg.Ingestion.StagingDir),
		ingestion.WithMaxUploadBytes(cfg.Ingestion.MaxUploadBytes),
		ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
		ingestion.WithPreviewRows(cfg.Ingestion.PreviewRows),
		ingestion.WithMaxStoredErrors(cfg.Ingestion.MaxStoredErrors),
		ingestion.WithProgressInterval(cfg.Ingestion.ProgressInterval),
		ingestion.WithJobTimeout(cfg.Ingestion.JobTimeout),
		ingestion.WithMetrics(a.Metrics),
		ingestion.WithLogger(logger.WithField("component", "ingestion")),
	}

	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		opts = append(opts, ingestion.WithProgressStore(cache.NewProgressCache(a.Redis, cfg.Redis.ProgressTTL)))
		logger.WithField("addr", cfg.Redis.Addr).Info("progress cache enabled")
	}

	a.Ingestion = ingestion.NewService(jobs, a.Records, registry, append(opts, extra...)...)
	a.Export = export.NewService(a.Ingestion, logger.WithField("component", "export"))
	return a, nil
}

// Handler builds the HTTP surface.
func (a *App) Handler() http.Handler {
	var limiter *middleware.UploadLimiter
	if a.Config.RateLimit.Enabled {
		limiter = middleware.NewUploadLimiter(a.Config.RateLimit.UploadsPerMinute, a.Config.RateLimit.Burst)
	}
	checks := map[string]server.HealthCheck{
		"postgres": func(ctx context.Context) error { return a.Conn.Pool.Ping(ctx) },
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return server.NewRouter(server.Options{
		Ingestion:      a.Ingestion,
		Export:         a.Export,
		Metrics:        a.Metrics,
		Logger:         a.Logger,
		UploadLimiter:  limiter,
		UserHeader:     a.Config.Server.UserHeader,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Checks:         checks,
	})
}

// Close releases the connections. Running workers should be stopped first.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if a.Conn != nil {
		a.Conn.Close()
	}
}
