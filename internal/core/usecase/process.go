// Package usecase contains the application services: batch orchestration,
// session tracking and follow-up Q&A. Everything here talks to the outside
// world through ports only.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkorolev/docbrief/internal/core/domain"
	"github.com/mkorolev/docbrief/internal/core/ports"
)

// BatchLimits are the upload constraints enforced before any processing
// collaborator is called.
type BatchLimits struct {
	MaxFileBytes      int64
	MaxBatchFiles     int
	AllowedExtensions []string
}

// ProcessBatchUseCase runs one upload batch end to end: validate, hand the
// files to the processor, reconcile its answer against the batch, and publish
// durable records for every completed document.
type ProcessBatchUseCase struct {
	processor ports.BatchProcessor
	publisher ports.RecordPublisher
	limits    BatchLimits
	retention time.Duration
	logger    *slog.Logger
}

func NewProcessBatchUseCase(
	processor ports.BatchProcessor,
	publisher ports.RecordPublisher,
	limits BatchLimits,
	retentionDays int,
	logger *slog.Logger,
) *ProcessBatchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &ProcessBatchUseCase{
		processor: processor,
		publisher: publisher,
		limits:    limits,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
	}
}

// Validate applies the all-or-nothing batch rules. A single bad file rejects
// the whole batch; nothing downstream is touched.
func (uc *ProcessBatchUseCase) Validate(files []*domain.ProcessingFile, opts domain.SummaryOptions) error {
	if len(files) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate batch", fmt.Errorf("no files in batch"))
	}
	if uc.limits.MaxBatchFiles > 0 && len(files) > uc.limits.MaxBatchFiles {
		return domain.WrapError(domain.ErrInvalidInput, "validate batch",
			fmt.Errorf("batch has %d files, limit is %d", len(files), uc.limits.MaxBatchFiles))
	}
	for _, f := range files {
		if uc.limits.MaxFileBytes > 0 && f.SizeBytes > uc.limits.MaxFileBytes {
			return domain.WrapError(domain.ErrInvalidInput, "validate batch",
				fmt.Errorf("%s exceeds the %d byte size limit", f.Filename, uc.limits.MaxFileBytes))
		}
		if !uc.extensionAllowed(f.Filename) {
			return domain.WrapError(domain.ErrInvalidInput, "validate batch",
				fmt.Errorf("%s has an unsupported file type", f.Filename))
		}
	}
	if opts.SendWhatsApp && !ValidatePhoneNumber(opts.PhoneNumber) {
		return domain.WrapError(domain.ErrInvalidInput, "validate batch",
			fmt.Errorf("whatsapp delivery requested without a valid phone number"))
	}
	return nil
}

// Run processes one validated batch. It always returns a result: remote
// failures come back as a failed BatchResult, never as a panic or nil.
func (uc *ProcessBatchUseCase) Run(
	ctx context.Context,
	files []*domain.ProcessingFile,
	opts domain.SummaryOptions,
	onProgress func(domain.ProcessingProgress),
) *domain.BatchResult {
	batchID := batchIDOf(files)
	start := time.Now()

	if onProgress != nil {
		onProgress(domain.ProcessingProgress{
			BatchID:  batchID,
			Stage:    domain.StatusUploading,
			Progress: 10,
			Message:  fmt.Sprintf("Uploading %d file(s)", len(files)),
		})
	}

	res, err := uc.processor.Process(ctx, domain.ProcessRequest{
		BatchID:    batchID,
		Files:      files,
		Options:    opts,
		OnProgress: onProgress,
	})
	if err != nil || !res.Success {
		message := "processing failed"
		if err != nil {
			message = err.Error()
		} else if res.Error != "" {
			message = res.Error
		}
		uc.logger.Error("batch_failed", "batch_id", batchID, "error", message)
		if onProgress != nil {
			onProgress(domain.ProcessingProgress{
				BatchID:  batchID,
				Stage:    domain.StatusFailed,
				Progress: 0,
				Message:  message,
				Error:    message,
			})
		}
		return &domain.BatchResult{
			BatchID: batchID,
			Success: false,
			Error:   message,
			TotalMS: time.Since(start).Milliseconds(),
		}
	}

	documents := uc.reconcile(files, res.Documents)
	uc.publishRecords(ctx, documents)

	if onProgress != nil {
		onProgress(domain.ProcessingProgress{
			BatchID:  batchID,
			Stage:    domain.StatusCompleted,
			Progress: 100,
			Message:  fmt.Sprintf("Processed %d document(s)", len(documents)),
		})
	}

	return &domain.BatchResult{
		BatchID:   batchID,
		Success:   true,
		Documents: documents,
		Delivery:  res.Delivery,
		TotalMS:   time.Since(start).Milliseconds(),
	}
}

// reconcile keeps only documents whose filename matches a file in this
// batch. Anything else the processor returned is dropped without comment:
// the batch is the source of truth for what was uploaded.
func (uc *ProcessBatchUseCase) reconcile(files []*domain.ProcessingFile, documents []domain.ProcessedDocument) []domain.ProcessedDocument {
	known := make(map[string]*domain.ProcessingFile, len(files))
	for _, f := range files {
		known[f.Filename] = f
	}

	matched := make([]domain.ProcessedDocument, 0, len(documents))
	for _, doc := range documents {
		file, ok := known[doc.Filename]
		if !ok {
			continue
		}
		doc.ID = file.ID
		matched = append(matched, doc)
	}
	return matched
}

// publishRecords emits one record event per completed document. Publish
// failures are logged and swallowed: durable records are best effort and
// must never fail a batch the user already paid for.
func (uc *ProcessBatchUseCase) publishRecords(ctx context.Context, documents []domain.ProcessedDocument) {
	if uc.publisher == nil {
		return
	}
	now := time.Now().UTC()
	for _, doc := range documents {
		event := domain.RecordEvent{
			Document: domain.DocumentRecord{
				ID:           doc.ID,
				Filename:     doc.Filename,
				FileType:     strings.TrimPrefix(strings.ToLower(filepath.Ext(doc.Filename)), "."),
				WordCount:    doc.WordCount,
				ProcessingMS: doc.ProcessingMS,
				Status:       string(domain.StatusCompleted),
				ExpiresAt:    now.Add(uc.retention),
				CreatedAt:    now,
			},
			Summary: domain.SummaryRecord{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				Summary:    doc.Summary,
				WordCount:  len(strings.Fields(doc.Summary)),
				CreatedAt:  now,
			},
		}
		if err := uc.publisher.PublishRecord(ctx, event); err != nil {
			uc.logger.Warn("record_publish_failed", "document_id", doc.ID, "error", err)
		}
	}
}

func (uc *ProcessBatchUseCase) extensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range uc.limits.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func batchIDOf(files []*domain.ProcessingFile) string {
	for _, f := range files {
		if f.BatchID != "" {
			return f.BatchID
		}
	}
	return uuid.NewString()
}
