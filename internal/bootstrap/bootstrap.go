// Package bootstrap wires configuration, infrastructure and use cases into
// runnable applications for the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkorolev/docbrief/internal/config"
	"github.com/mkorolev/docbrief/internal/core/domain"
	"github.com/mkorolev/docbrief/internal/core/ports"
	"github.com/mkorolev/docbrief/internal/core/usecase"
	"github.com/mkorolev/docbrief/internal/export"
	"github.com/mkorolev/docbrief/internal/infrastructure/extractor"
	"github.com/mkorolev/docbrief/internal/infrastructure/pipeline"
	"github.com/mkorolev/docbrief/internal/infrastructure/queue/nats"
	"github.com/mkorolev/docbrief/internal/infrastructure/repository/postgres"
	"github.com/mkorolev/docbrief/internal/infrastructure/resilience"
	redisstore "github.com/mkorolev/docbrief/internal/infrastructure/sessionstore/redis"
	"github.com/mkorolev/docbrief/internal/infrastructure/storage/localfs"
	"github.com/mkorolev/docbrief/internal/infrastructure/summarizer/openai"
	"github.com/mkorolev/docbrief/internal/infrastructure/whatsapp"
	"github.com/mkorolev/docbrief/internal/observability/metrics"
)

// App holds everything the api binary serves requests with.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Sessions  *usecase.SessionManager
	Ask       ports.QuestionAnswerer
	Records   ports.RecordStore
	Exporter  *export.Service
	Deliverer ports.SummaryDeliverer
	Storage   ports.ObjectStorage
	Metrics   *metrics.HTTPServerMetrics

	closeFn func()
}

// Worker holds the record-writing side consumed from the queue.
type Worker struct {
	Config  config.Config
	Logger  *slog.Logger
	Queue   *nats.Queue
	Records ports.RecordStore
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	records := postgres.NewRecordRepository(db)
	if err := records.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.UploadDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init upload storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{BreakerEnabled: true})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	sessionStore, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init session store: %w", err)
	}

	summarizer := openai.New(cfg.SummarizerBaseURL, cfg.SummarizerAPIKey, cfg.SummarizerModel, executor)

	var deliverer ports.SummaryDeliverer = disabledDeliverer{}
	if cfg.WhatsAppEnabled {
		deliverer = whatsapp.New(cfg.WhatsAppBaseURL, cfg.WhatsAppToken, resilience.NewExecutor(resilience.Config{BreakerEnabled: true}))
	}

	texts := extractor.New(storage)
	processor := pipeline.New(texts, summarizer, deliverer, logger)

	runner := usecase.NewProcessBatchUseCase(processor, queue, usecase.BatchLimits{
		MaxFileBytes:      cfg.MaxFileBytes,
		MaxBatchFiles:     cfg.MaxBatchFiles,
		AllowedExtensions: cfg.AllowedExtensions,
	}, cfg.RecordRetentionDays, logger)

	sessions := usecase.NewSessionManager(sessionStore, runner, deliverer, storage, logger)
	ask := usecase.NewAskUseCase(records, summarizer)
	exporter := export.NewService(records, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Sessions:  sessions,
		Ask:       ask,
		Records:   records,
		Exporter:  exporter,
		Deliverer: deliverer,
		Storage:   storage,
		Metrics:   metrics.NewHTTPServerMetrics("api"),
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	records := postgres.NewRecordRepository(db)
	if err := records.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &Worker{
		Config:  cfg,
		Logger:  logger,
		Queue:   queue,
		Records: records,
		Metrics: metrics.NewWorkerMetrics("worker"),
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// disabledDeliverer stands in when WhatsApp is switched off in config.
type disabledDeliverer struct{}

func (disabledDeliverer) SendSummaries(context.Context, string, []domain.ProcessedDocument) ([]domain.DeliveryOutcome, error) {
	return nil, domain.WrapError(domain.ErrInvalidInput, "send summaries", fmt.Errorf("whatsapp delivery is disabled"))
}

func (disabledDeliverer) TestConnection(context.Context) error {
	return domain.WrapError(domain.ErrInvalidInput, "test connection", fmt.Errorf("whatsapp delivery is disabled"))
}

func (disabledDeliverer) SendTestMessage(context.Context, string) error {
	return domain.WrapError(domain.ErrInvalidInput, "send test message", fmt.Errorf("whatsapp delivery is disabled"))
}
