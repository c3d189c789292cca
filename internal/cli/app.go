package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"budget/internal/amqp"
	"budget/internal/backend"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/dataset"
	"budget/internal/forecast"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
)

// NewRefreshService wires the configured raw period source, the assembler
// and the store into a refresh service.
func NewRefreshService(ctx context.Context, logger *applog.Logger, cfg *config.Config, store services.DatasetStore) (*services.RefreshService, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}

	layout := core.DefaultLayout()
	res, err := backend.NewFactory().CreateSource(ctx, backendCfg, layout)
	if err != nil {
		return nil, fmt.Errorf("create %s source: %w", backendCfg.Type, err)
	}

	assembler := dataset.NewAssembler(layout, res.Source, dataset.Config{
		Workers:     cfg.AssemblyWorkers,
		TaskTimeout: cfg.AssemblyTaskTimeout,
	})
	logger.Info("Refresh pipeline ready",
		"backend", res.Type,
		"workers", cfg.AssemblyWorkers,
		"task_timeout", cfg.AssemblyTaskTimeout)

	return services.NewRefreshService(res.Source, assembler, store), nil
}

// NewForecastService wires the forecaster over the store.
func NewForecastService(store services.DatasetStore) *services.ForecastService {
	return services.NewForecastService(store, forecast.New())
}

// ConnectAMQP returns a broker client, or nil when no broker is configured
// or it cannot be reached.
func ConnectAMQP(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	if !cfg.HasAMQP() {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without it", applog.FieldError, err)
		return nil
	}
	logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// OpenStore opens the SQLite store at path, creating its directory, and
// returns an error instead of exiting so commands can report it their own way.
func OpenStore(path string) (*storage.SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return repo, nil
}
