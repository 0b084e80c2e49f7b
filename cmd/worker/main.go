package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outreachly/platform/pkg/common/config"
	"github.com/outreachly/platform/pkg/common/database"
	"github.com/outreachly/platform/pkg/common/kafka"
	"github.com/outreachly/platform/pkg/common/logger"
	"github.com/outreachly/platform/pkg/contact"
	"github.com/outreachly/platform/pkg/exporter"
	"github.com/outreachly/platform/pkg/importer"
	"github.com/outreachly/platform/pkg/queue"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}
	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Redis")
	}

	contactRepo := contact.NewRepository(db)
	importRepo := importer.NewRepository(db)
	exportRepo := exporter.NewRepository(db)
	for _, migrate := range []func() error{
		contactRepo.AutoMigrate, importRepo.AutoMigrate, exportRepo.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to run database migrations")
		}
	}

	events := kafka.NewProducer(cfg.KafkaBrokers, cfg.JobEventsTopic)
	defer events.Close()
	failures := kafka.NewProducer(cfg.KafkaBrokers, cfg.JobFailuresTopic)
	defer failures.Close()

	importSvc := importer.NewService(importRepo, contactRepo, events, failures)
	exportSvc := exporter.NewService(exportRepo, contactRepo, events, failures, cfg.ExportDir)

	queueClient := queue.NewClient(rdb, queue.Options{
		Attempts:      cfg.QueueAttempts,
		BackoffBase:   cfg.QueueBackoffBase,
		JobTimeout:    cfg.QueueJobTimeout,
		StallInterval: cfg.QueueStallInterval,
		MaxStalls:     cfg.QueueMaxStalls,
	})

	supervisor := queue.NewSupervisor(queueClient, cfg.WorkerConcurrency)
	supervisor.Register(importer.QueueName, func(ctx context.Context, job *queue.Job) error {
		var payload importer.JobPayload
		if err := job.Unmarshal(&payload); err != nil {
			return err
		}
		return importSvc.Run(ctx, payload, job.Progress)
	})
	supervisor.Register(exporter.QueueName, func(ctx context.Context, job *queue.Job) error {
		var payload exporter.JobPayload
		if err := job.Unmarshal(&payload); err != nil {
			return err
		}
		return exportSvc.Run(ctx, payload, job.Progress)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	supervisor.Start(ctx)

	// Expired export files are swept hourly.
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		exportSvc.CleanupExpired(cfg.ExportRetention)
		for {
			select {
			case <-ticker.C:
				exportSvc.CleanupExpired(cfg.ExportRetention)
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Log.WithField("concurrency", cfg.WorkerConcurrency).Info("Contact worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down contact worker...")
	cancel()
	supervisor.Stop()
	<-cleanupDone
	logger.Log.Info("Contact worker stopped")
}
