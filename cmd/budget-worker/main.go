package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budget/internal/cli"
	applog "budget/internal/log"
	"budget/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting budget-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	refresh, err := cli.NewRefreshService(ctx, logger, cfg, store)
	if err != nil {
		logger.Error("Failed to initialize refresh pipeline", applog.FieldError, err)
		os.Exit(1)
	}
	refreshWorker := worker.NewRefreshWorker(refresh, cfg.RefreshInterval)

	// A failed startup load is retried by the schedule or the next request.
	if err := refreshWorker.InitialLoad(ctx); err != nil {
		logger.Error("Startup refresh failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if amqpClient := cli.ConnectAMQP(logger, cfg); amqpClient != nil {
		defer amqpClient.Close()
		g.Go(func() error {
			return amqpClient.ConsumeRefreshRequests(gctx, refreshWorker.HandleRefreshMessage)
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no broker available")
	}

	g.Go(func() error {
		return refreshWorker.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
