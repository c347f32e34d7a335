package ports

import (
	"context"

	"github.com/mkorolev/docbrief/internal/core/domain"
)

// BatchRunner is the inbound contract for one batch run. Validate never
// touches a collaborator; Run always returns a result, failed or not.
type BatchRunner interface {
	Validate(files []*domain.ProcessingFile, opts domain.SummaryOptions) error
	Run(ctx context.Context, files []*domain.ProcessingFile, opts domain.SummaryOptions, onProgress func(domain.ProcessingProgress)) *domain.BatchResult
}

// QuestionAnswerer answers follow-up questions about a processed document.
type QuestionAnswerer interface {
	Ask(ctx context.Context, documentID, question string) (string, error)
}
