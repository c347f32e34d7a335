package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkorolev/docbrief/internal/core/domain"
	"github.com/mkorolev/docbrief/internal/core/ports"
)

// AskUseCase answers follow-up questions about a processed document using
// its stored summary as the only context.
type AskUseCase struct {
	records    ports.RecordStore
	summarizer ports.Summarizer
}

func NewAskUseCase(records ports.RecordStore, summarizer ports.Summarizer) *AskUseCase {
	return &AskUseCase{records: records, summarizer: summarizer}
}

func (uc *AskUseCase) Ask(ctx context.Context, documentID, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is empty"))
	}
	if strings.TrimSpace(documentID) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("document id is empty"))
	}

	record, err := uc.records.GetSummaryByDocumentID(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("load summary: %w", err)
	}

	answer, err := uc.summarizer.Answer(ctx, question, record.Summary)
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	return answer, nil
}
