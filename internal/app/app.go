package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/todoflow-labs/todo-api/internal/config"
	"github.com/todoflow-labs/todo-api/internal/database"
	"github.com/todoflow-labs/todo-api/internal/handler"
	"github.com/todoflow-labs/todo-api/internal/logging"
	"github.com/todoflow-labs/todo-api/internal/metrics"
	"github.com/todoflow-labs/todo-api/internal/repository"
)

const shutdownTimeout = 10 * time.Second

func Run() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize logger and metrics
	base := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger := base.With().Str("service", cfg.App.Name).Str("env", cfg.App.Env).Logger()
	if srv := metrics.Init(cfg.MetricsAddr, &logger); srv != nil {
		logger.Info().Msgf("metrics server listening on %s", cfg.MetricsAddr)
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.URL, database.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}
	defer db.Close()
	logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db, cfg.Database.Driver)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		for _, m := range applied {
			logger.Info().Int64("version", m.Version).Str("source", m.Source).Msg("applied migration")
		}
	}

	// Set up HTTP server and routes
	router := NewRouter(
		ServiceInfo{Name: cfg.App.Name, Version: cfg.App.Version},
		repository.NewTodoStore(db),
		&logger,
		cfg.HTTP.RequestTimeout,
		handler.WithErrorDetail(!cfg.Production()),
	)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("todo-api listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("HTTP server failed")
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}
