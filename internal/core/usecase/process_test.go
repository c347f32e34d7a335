package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mkorolev/docbrief/internal/core/domain"
)

type processorFake struct {
	result *domain.ProcessResult
	err    error
	calls  int
	gotReq domain.ProcessRequest
}

func (f *processorFake) Process(_ context.Context, req domain.ProcessRequest) (*domain.ProcessResult, error) {
	f.calls++
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type publisherFake struct {
	err    error
	events []domain.RecordEvent
}

func (f *publisherFake) PublishRecord(_ context.Context, ev domain.RecordEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

type blobStoreFake struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newBlobStoreFake() *blobStoreFake {
	return &blobStoreFake{blobs: map[string][]byte{}}
}

func (f *blobStoreFake) Save(_ context.Context, sessionID, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[sessionID+"/"+key] = raw
}

func (f *blobStoreFake) Load(_ context.Context, sessionID, key string, out any) bool {
	f.mu.Lock()
	raw, ok := f.blobs[sessionID+"/"+key]
	f.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (f *blobStoreFake) Clear(_ context.Context, sessionID, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, sessionID+"/"+key)
}

type delivererFake struct {
	outcomes []domain.DeliveryOutcome
	err      error
	calls    int
	gotPhone string
}

func (f *delivererFake) SendSummaries(_ context.Context, phone string, docs []domain.ProcessedDocument) ([]domain.DeliveryOutcome, error) {
	f.calls++
	f.gotPhone = phone
	if f.err != nil {
		return nil, f.err
	}
	if f.outcomes != nil {
		return f.outcomes, nil
	}
	outcomes := make([]domain.DeliveryOutcome, 0, len(docs))
	for _, d := range docs {
		outcomes = append(outcomes, domain.DeliveryOutcome{Filename: d.Filename, Success: true})
	}
	return outcomes, nil
}

func (f *delivererFake) TestConnection(context.Context) error { return f.err }

func (f *delivererFake) SendTestMessage(context.Context, string) error { return f.err }

func testLimits() BatchLimits {
	return BatchLimits{
		MaxFileBytes:      10 << 20,
		MaxBatchFiles:     5,
		AllowedExtensions: []string{".pdf", ".docx", ".txt", ".md"},
	}
}

func uploadFile(id, filename string, size int64) *domain.ProcessingFile {
	return &domain.ProcessingFile{ID: id, BatchID: "batch-1", Filename: filename, SizeBytes: size}
}

func TestValidateRejectsEmptyBatch(t *testing.T) {
	uc := NewProcessBatchUseCase(&processorFake{}, nil, testLimits(), 30, nil)

	err := uc.Validate(nil, domain.SummaryOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	uc := NewProcessBatchUseCase(&processorFake{}, nil, testLimits(), 30, nil)

	files := []*domain.ProcessingFile{
		uploadFile("f1", "ok.pdf", 100),
		uploadFile("f2", "big.pdf", (10<<20)+1),
	}
	err := uc.Validate(files, domain.SummaryOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestValidateRejectsUnsupportedExtension(t *testing.T) {
	uc := NewProcessBatchUseCase(&processorFake{}, nil, testLimits(), 30, nil)

	files := []*domain.ProcessingFile{uploadFile("f1", "photo.png", 100)}
	err := uc.Validate(files, domain.SummaryOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestValidateRejectsTooManyFiles(t *testing.T) {
	uc := NewProcessBatchUseCase(&processorFake{}, nil, testLimits(), 30, nil)

	var files []*domain.ProcessingFile
	for i := 0; i < 6; i++ {
		files = append(files, uploadFile("f", "a.pdf", 10))
	}
	err := uc.Validate(files, domain.SummaryOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestValidateRejectsDeliveryWithoutPhone(t *testing.T) {
	uc := NewProcessBatchUseCase(&processorFake{}, nil, testLimits(), 30, nil)

	files := []*domain.ProcessingFile{uploadFile("f1", "a.pdf", 10)}
	err := uc.Validate(files, domain.SummaryOptions{SendWhatsApp: true, PhoneNumber: "123"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestRunReconcilesByFilenameAndDropsUnmatched(t *testing.T) {
	processor := &processorFake{result: &domain.ProcessResult{
		Success: true,
		Documents: []domain.ProcessedDocument{
			{ID: "remote-1", Filename: "a.pdf", Summary: "summary a", WordCount: 10},
			{ID: "remote-x", Filename: "ghost.pdf", Summary: "never uploaded"},
		},
	}}
	publisher := &publisherFake{}
	uc := NewProcessBatchUseCase(processor, publisher, testLimits(), 30, nil)

	files := []*domain.ProcessingFile{uploadFile("f1", "a.pdf", 10)}
	result := uc.Run(context.Background(), files, domain.SummaryOptions{}, nil)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("expected 1 reconciled document, got %d", len(result.Documents))
	}
	if result.Documents[0].ID != "f1" {
		t.Fatalf("expected document to adopt the batch file ID, got %q", result.Documents[0].ID)
	}
	if len(publisher.events) != 1 || publisher.events[0].Document.ID != "f1" {
		t.Fatalf("expected one record event for f1, got %+v", publisher.events)
	}
	if publisher.events[0].Summary.Summary != "summary a" {
		t.Fatalf("unexpected summary record: %+v", publisher.events[0].Summary)
	}
}

func TestRunProcessorErrorYieldsFailedResult(t *testing.T) {
	processor := &processorFake{err: errors.New("connection refused")}
	uc := NewProcessBatchUseCase(processor, &publisherFake{}, testLimits(), 30, nil)

	var events []domain.ProcessingProgress
	files := []*domain.ProcessingFile{uploadFile("f1", "a.pdf", 10)}
	result := uc.Run(context.Background(), files, domain.SummaryOptions{}, func(ev domain.ProcessingProgress) {
		events = append(events, ev)
	})

	if result.Success {
		t.Fatal("expected failed result")
	}
	if result.Error != "connection refused" {
		t.Fatalf("unexpected error message %q", result.Error)
	}
	last := events[len(events)-1]
	if last.Stage != domain.StatusFailed || last.Progress != 0 {
		t.Fatalf("expected terminal failure event at 0%%, got %+v", last)
	}
}

func TestRunPublishFailureDoesNotFailBatch(t *testing.T) {
	processor := &processorFake{result: &domain.ProcessResult{
		Success:   true,
		Documents: []domain.ProcessedDocument{{ID: "remote-1", Filename: "a.pdf", Summary: "s"}},
	}}
	publisher := &publisherFake{err: errors.New("nats down")}
	uc := NewProcessBatchUseCase(processor, publisher, testLimits(), 30, nil)

	files := []*domain.ProcessingFile{uploadFile("f1", "a.pdf", 10)}
	result := uc.Run(context.Background(), files, domain.SummaryOptions{}, nil)

	if !result.Success {
		t.Fatalf("publish failure must not fail the batch: %q", result.Error)
	}
}

func TestRunEmitsUploadingThenCompleted(t *testing.T) {
	processor := &processorFake{result: &domain.ProcessResult{
		Success:   true,
		Documents: []domain.ProcessedDocument{{ID: "remote-1", Filename: "a.pdf", Summary: "s"}},
	}}
	uc := NewProcessBatchUseCase(processor, &publisherFake{}, testLimits(), 30, nil)

	var events []domain.ProcessingProgress
	files := []*domain.ProcessingFile{uploadFile("f1", "a.pdf", 10)}
	uc.Run(context.Background(), files, domain.SummaryOptions{}, func(ev domain.ProcessingProgress) {
		events = append(events, ev)
	})

	if len(events) < 2 {
		t.Fatalf("expected at least 2 events, got %d", len(events))
	}
	if events[0].Stage != domain.StatusUploading || events[0].Progress != 10 {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Stage != domain.StatusCompleted || last.Progress != 100 {
		t.Fatalf("unexpected terminal event %+v", last)
	}
}
