package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/cli"
	tlog "tally/internal/log"
	"tally/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(tlog.ComponentWorker, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(tlog.ComponentWorker, cfg.LogLevel, cfg.LogFormat)

	logger.Info("Starting tally-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// The worker reads what the server wrote, so an in-process store is useless here.
	if !backendCfg.Type.Persistent() {
		logger.Error("Worker requires a persistent backend", "backend", backendCfg.Type)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := backend.NewFactory(logger.WithComponent(tlog.ComponentBackend).Logger)
	result, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	defer result.Close()

	mirror, err := factory.NewMirror(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize mirror", "error", err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(result.Backend, mirror, cfg.SyncBatchSize).WithMinAge(cfg.SyncMinAge)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		// Don't exit, the scheduled sweep retries.
		logger.Error("Failed startup sync check", "error", err)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := amqpClient.ConsumeRecordSync(ctx, syncWorker.HandleSyncMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("AMQP not configured, relying on scheduled sweep only")
	}

	scheduler, err := worker.NewScheduler(syncWorker, cfg.SyncSchedule, cfg.Location())
	if err != nil {
		logger.Error("Invalid sync schedule", "error", err, "schedule", cfg.SyncSchedule)
		os.Exit(1)
	}
	scheduler.Start()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		cancel()
		scheduler.Stop(ctx)
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
	})

	logger.Info("Worker started",
		"backend", backendCfg.Type,
		"mirror", cfg.MirrorEnabled(),
		"schedule", cfg.SyncSchedule,
		"batch_size", cfg.SyncBatchSize)

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Worker stopped gracefully")
}
