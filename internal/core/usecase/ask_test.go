package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/mkorolev/docbrief/internal/core/domain"
)

type recordStoreFake struct {
	summary *domain.SummaryRecord
	err     error
}

func (f *recordStoreFake) SaveDocument(context.Context, domain.DocumentRecord) error { return f.err }

func (f *recordStoreFake) SaveSummary(context.Context, domain.SummaryRecord) error { return f.err }

func (f *recordStoreFake) GetSummaryByDocumentID(context.Context, string) (*domain.SummaryRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func (f *recordStoreFake) Stats(context.Context) (domain.RecordStats, error) {
	return domain.RecordStats{}, f.err
}

func (f *recordStoreFake) ListRecent(context.Context, int) ([]domain.DocumentRecord, error) {
	return nil, f.err
}

type summarizerFake struct {
	answer     string
	err        error
	gotContext string
}

func (f *summarizerFake) Summarize(_ context.Context, text string, _ domain.SummaryOptions) (string, error) {
	return f.answer, f.err
}

func (f *summarizerFake) Answer(_ context.Context, question, summary string) (string, error) {
	f.gotContext = summary
	return f.answer, f.err
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	uc := NewAskUseCase(&recordStoreFake{}, &summarizerFake{})

	_, err := uc.Ask(context.Background(), "doc-1", "   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestAskPropagatesNotFound(t *testing.T) {
	store := &recordStoreFake{
		err: domain.WrapError(domain.ErrNotFound, "get summary", errors.New("no rows")),
	}
	uc := NewAskUseCase(store, &summarizerFake{})

	_, err := uc.Ask(context.Background(), "doc-1", "what is this about?")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestAskAnswersFromStoredSummary(t *testing.T) {
	store := &recordStoreFake{
		summary: &domain.SummaryRecord{ID: "sum-1", DocumentID: "doc-1", Summary: "quarterly revenue grew 12%"},
	}
	summarizer := &summarizerFake{answer: "Revenue grew 12% in the quarter."}
	uc := NewAskUseCase(store, summarizer)

	answer, err := uc.Ask(context.Background(), "doc-1", "how did revenue change?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer != summarizer.answer {
		t.Fatalf("unexpected answer %q", answer)
	}
	if summarizer.gotContext != store.summary.Summary {
		t.Fatalf("answer must use the stored summary as context, got %q", summarizer.gotContext)
	}
}
