package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(log.ComponentWorker, cfg.LogLevel, cfg.LogFormat)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	res, err := backend.NewFactory(logger).CreateWorker(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize worker backend", log.FieldError, err)
		os.Exit(1)
	}

	var consumer worker.Consumer
	if res.Events != nil {
		consumer = res.Events
	} else {
		logger.Info("AMQP disabled, mirroring on the resync interval only")
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(context.Context) {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting fintrack-worker",
		"resync_interval", cfg.ResyncInterval.String(),
		"spreadsheet_id", cfg.GoogleSpreadsheetID)

	mw := worker.NewMirrorWorker(res.Store, res.Mirror, logger)
	if err := mw.Run(ctx, consumer, cfg.ResyncInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Mirror worker stopped", log.FieldError, err)
		_ = res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
