// Package pipeline implements the batch processing collaborator: extract,
// summarize, then optionally deliver, one file at a time. The orchestrator
// only sees the request/response contract and progress callbacks.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkorolev/docbrief/internal/core/domain"
	"github.com/mkorolev/docbrief/internal/core/ports"
)

type Processor struct {
	extractor  ports.TextExtractor
	summarizer ports.Summarizer
	deliverer  ports.SummaryDeliverer
	logger     *slog.Logger
}

func New(
	extractor ports.TextExtractor,
	summarizer ports.Summarizer,
	deliverer ports.SummaryDeliverer,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		extractor:  extractor,
		summarizer: summarizer,
		deliverer:  deliverer,
		logger:     logger,
	}
}

func (p *Processor) Process(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessResult, error) {
	documents := make([]domain.ProcessedDocument, 0, len(req.Files))

	for _, file := range req.Files {
		doc, err := p.processFile(ctx, req, file)
		if err != nil {
			// One failed file fails the call; the orchestrator marks the
			// whole batch failed, matching the remote-call contract.
			return nil, fmt.Errorf("process %s: %w", file.Filename, err)
		}
		documents = append(documents, doc)
	}

	result := &domain.ProcessResult{
		Success:   true,
		Documents: documents,
	}

	if req.Options.SendWhatsApp && req.Options.PhoneNumber != "" {
		result.Delivery = p.deliver(ctx, req, documents)
	}

	return result, nil
}

func (p *Processor) processFile(ctx context.Context, req domain.ProcessRequest, file *domain.ProcessingFile) (domain.ProcessedDocument, error) {
	start := time.Now()

	p.emit(req, file, domain.StatusExtracting, 30, "Extracting text from "+file.Filename)
	text, err := p.extractor.Extract(ctx, file.StoragePath, file.Filename)
	if err != nil {
		return domain.ProcessedDocument{}, fmt.Errorf("extract text: %w", err)
	}

	p.emit(req, file, domain.StatusSummarizing, 60, "Summarizing "+file.Filename)
	summary, err := p.summarizer.Summarize(ctx, text, req.Options)
	if err != nil {
		return domain.ProcessedDocument{}, fmt.Errorf("summarize: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return domain.ProcessedDocument{}, fmt.Errorf("summarizer returned empty summary")
	}

	return domain.ProcessedDocument{
		ID:           file.ID,
		Filename:     file.Filename,
		Summary:      summary,
		WordCount:    len(strings.Fields(text)),
		ProcessingMS: time.Since(start).Milliseconds(),
	}, nil
}

// deliver runs the WhatsApp leg. Delivery problems never fail the batch;
// they surface as a non-success delivery outcome on the result.
func (p *Processor) deliver(ctx context.Context, req domain.ProcessRequest, documents []domain.ProcessedDocument) *domain.BatchDelivery {
	for _, file := range req.Files {
		p.emit(req, file, domain.StatusSending, 85, "Sending summary to WhatsApp")
	}

	outcomes, err := p.deliverer.SendSummaries(ctx, req.Options.PhoneNumber, documents)
	if err != nil {
		p.logger.Warn("whatsapp_delivery_failed", "batch_id", req.BatchID, "error", err)
		return &domain.BatchDelivery{Success: false, Error: err.Error()}
	}

	delivery := &domain.BatchDelivery{Success: true, Outcomes: outcomes}
	for _, o := range outcomes {
		if !o.Success {
			delivery.Success = false
		}
	}
	return delivery
}

func (p *Processor) emit(req domain.ProcessRequest, file *domain.ProcessingFile, stage domain.FileStatus, progress int, message string) {
	if req.OnProgress == nil {
		return
	}
	req.OnProgress(domain.ProcessingProgress{
		BatchID:  req.BatchID,
		FileID:   file.ID,
		Filename: file.Filename,
		Stage:    stage,
		Progress: progress,
		Message:  message,
	})
}
