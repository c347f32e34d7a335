package ports

import (
	"context"
	"io"

	"github.com/mkorolev/docbrief/internal/core/domain"
)

// BatchProcessor runs the extract/summarize/deliver leg for a whole batch.
type BatchProcessor interface {
	Process(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessResult, error)
}

// TextExtractor extracts plain text from a stored upload.
type TextExtractor interface {
	Extract(ctx context.Context, storagePath, filename string) (string, error)
}

// Summarizer generates summaries and follow-up answers.
type Summarizer interface {
	Summarize(ctx context.Context, text string, opts domain.SummaryOptions) (string, error)
	Answer(ctx context.Context, question, summary string) (string, error)
}

// SummaryDeliverer transmits summaries over the messaging gateway.
type SummaryDeliverer interface {
	SendSummaries(ctx context.Context, phoneNumber string, docs []domain.ProcessedDocument) ([]domain.DeliveryOutcome, error)
	TestConnection(ctx context.Context) error
	SendTestMessage(ctx context.Context, phoneNumber string) error
}

// ObjectStorage stages uploaded files for extraction.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// RecordPublisher hands processed documents to the record writer.
type RecordPublisher interface {
	PublishRecord(ctx context.Context, event domain.RecordEvent) error
}

// RecordStore is the relational store behind statistics and follow-ups.
type RecordStore interface {
	SaveDocument(ctx context.Context, rec domain.DocumentRecord) error
	SaveSummary(ctx context.Context, rec domain.SummaryRecord) error
	GetSummaryByDocumentID(ctx context.Context, documentID string) (*domain.SummaryRecord, error)
	Stats(ctx context.Context) (domain.RecordStats, error)
	ListRecent(ctx context.Context, limit int) ([]domain.DocumentRecord, error)
}

// SessionStore persists small JSON blobs scoped to one session.
// Save swallows serialization/backend errors; Load treats missing or corrupt
// payloads as absent.
type SessionStore interface {
	Save(ctx context.Context, sessionID, key string, value any)
	Load(ctx context.Context, sessionID, key string, out any) bool
	Clear(ctx context.Context, sessionID, key string)
}
