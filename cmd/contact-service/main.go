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

	"github.com/gorilla/mux"
	"github.com/outreachly/platform/pkg/common/config"
	"github.com/outreachly/platform/pkg/common/database"
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

	catalog, err := contact.LoadSynonyms(cfg.SynonymCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load synonym catalog")
	}

	queueClient := queue.NewClient(rdb, queue.Options{
		Attempts:      cfg.QueueAttempts,
		BackoffBase:   cfg.QueueBackoffBase,
		JobTimeout:    cfg.QueueJobTimeout,
		StallInterval: cfg.QueueStallInterval,
		MaxStalls:     cfg.QueueMaxStalls,
	})

	submitImport := func(ctx context.Context, payload importer.JobPayload) (string, error) {
		return queueClient.Enqueue(ctx, importer.QueueName, payload)
	}
	importStatus := func(ctx context.Context, queueJobID string) (importer.JobStatusView, error) {
		status, err := queueClient.Status(ctx, importer.QueueName, queueJobID)
		if err != nil {
			return importer.JobStatusView{}, err
		}
		return importer.JobStatusView{
			Status:   status.Status,
			Progress: status.Progress,
			Error:    status.Error,
		}, nil
	}

	submitExport := func(ctx context.Context, payload exporter.JobPayload) (string, error) {
		return queueClient.Enqueue(ctx, exporter.QueueName, payload)
	}
	exportStatus := func(ctx context.Context, queueJobID string) (exporter.JobStatusView, error) {
		status, err := queueClient.Status(ctx, exporter.QueueName, queueJobID)
		if err != nil {
			return exporter.JobStatusView{}, err
		}
		return exporter.JobStatusView{
			Status:   status.Status,
			Progress: status.Progress,
			Error:    status.Error,
		}, nil
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	contact.NewHTTPHandler(contactRepo, catalog, importRepo).Register(apiRouter)
	importer.NewHTTPHandler(importRepo, submitImport, importStatus, cfg.MaxRequestBody, cfg.UploadDir).Register(apiRouter)
	exporter.NewHTTPHandler(exportRepo, submitExport, exportStatus).Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Contact service started")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down contact service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Contact service stopped")
}
