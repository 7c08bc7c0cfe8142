package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/handler"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/snapshot"
	"github.com/wadjakorntonsri/portfolio-views/pkg/config"
	"github.com/wadjakorntonsri/portfolio-views/pkg/core/services"
	applog "github.com/wadjakorntonsri/portfolio-views/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := applog.New(cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	// Initialize Repository
	store, err := repository.Open(cfg, logger)
	if err != nil {
		logger.Error("failed to open visitor store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close visitor store", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := snapshot.RestoreIfEmpty(ctx, store, cfg.SnapshotPath, logger); err != nil {
		logger.Error("failed to restore backup", zap.Error(err))
		return err
	}

	// Initialize Services
	tracker := services.NewVisitTracker(store,
		services.WithCooldown(cfg.VisitCooldown),
		services.WithLogger(logger),
	)
	snapshots := services.NewSnapshotService(store, logger)

	if cfg.SnapshotPath != "" {
		scheduler := snapshot.NewScheduler(store, cfg.SnapshotPath, cfg.SnapshotInterval, logger)
		scheduler.Start(ctx)
		// Runs before store.Close so the final export sees every write.
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := scheduler.Stop(stopCtx); err != nil {
				logger.Error("final snapshot failed", zap.Error(err))
			}
		}()
	}

	// Initialize Router
	mux := handler.NewRouter(cfg, tracker, snapshots, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("driver", cfg.StoreDriver),
			zap.Duration("cooldown", cfg.VisitCooldown),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server exited")
	return nil
}
