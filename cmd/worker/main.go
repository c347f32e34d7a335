package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkorolev/docbrief/internal/bootstrap"
	"github.com/mkorolev/docbrief/internal/config"
	"github.com/mkorolev/docbrief/internal/core/domain"
	"github.com/mkorolev/docbrief/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer worker.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: worker.Metrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = worker.Queue.SubscribeRecords(ctx, func(handlerCtx context.Context, event domain.RecordEvent) error {
		writeCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		worker.Metrics.StartWrite()
		start := time.Now()
		writeErr := writeRecord(writeCtx, worker, event)
		worker.Metrics.FinishWrite("worker", time.Since(start), writeErr)
		worker.Metrics.ObserveEventLag("worker", time.Since(event.Document.CreatedAt))

		if writeErr != nil {
			// At-most-once delivery: log and move on, never redeliver.
			logger.Error("record_write_failed",
				"document_id", event.Document.ID,
				"error", writeErr,
			)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func writeRecord(ctx context.Context, worker *bootstrap.Worker, event domain.RecordEvent) error {
	if err := worker.Records.SaveDocument(ctx, event.Document); err != nil {
		return err
	}
	return worker.Records.SaveSummary(ctx, event.Summary)
}
