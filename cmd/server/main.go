package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlexTsimba/traffboard-sub001/internal/app"
	"github.com/AlexTsimba/traffboard-sub001/internal/config"
	"github.com/AlexTsimba/traffboard-sub001/internal/logging"

	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml and .env")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.LogFatal(logging.FromContext(context.Background()), "failed to load configuration", err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		logging.LogFatal(logging.FromContext(context.Background()), "failed to configure logging", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logging.LogFatal(logger, "failed to start", err)
	}
	defer application.Close()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      application.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", cfg.Server.Addr).Info("import server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return application.Ingestion.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logging.LogError(logger, "server stopped with error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}
