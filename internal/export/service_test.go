package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mkorolev/docbrief/internal/core/domain"
)

type recordsFake struct {
	recs []domain.DocumentRecord
	err  error
}

func (f *recordsFake) SaveDocument(context.Context, domain.DocumentRecord) error { return nil }

func (f *recordsFake) SaveSummary(context.Context, domain.SummaryRecord) error { return nil }

func (f *recordsFake) GetSummaryByDocumentID(context.Context, string) (*domain.SummaryRecord, error) {
	return nil, nil
}

func (f *recordsFake) Stats(context.Context) (domain.RecordStats, error) {
	return domain.RecordStats{}, nil
}

func (f *recordsFake) ListRecent(context.Context, int) ([]domain.DocumentRecord, error) {
	return f.recs, f.err
}

func TestExportHistoryXLSX(t *testing.T) {
	now := time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)
	svc := NewService(&recordsFake{recs: []domain.DocumentRecord{
		{ID: "d1", Filename: "report.pdf", FileType: "pdf", WordCount: 420, ProcessingMS: 1800, Status: "completed", CreatedAt: now, ExpiresAt: now.AddDate(0, 0, 30)},
		{ID: "d2", Filename: "notes.docx", FileType: "docx", WordCount: 90, ProcessingMS: 600, Status: "completed", CreatedAt: now},
	}}, nil)

	raw, err := svc.ExportHistoryXLSX(context.Background(), 0)
	if err != nil {
		t.Fatalf("ExportHistoryXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Documents")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[1][1] != "report.pdf" || rows[2][1] != "notes.docx" {
		t.Fatalf("unexpected filenames: %v %v", rows[1], rows[2])
	}
}

func TestExportHistoryXLSXStoreError(t *testing.T) {
	svc := NewService(&recordsFake{err: errors.New("db down")}, nil)

	if _, err := svc.ExportHistoryXLSX(context.Background(), 10); err == nil {
		t.Fatal("expected error from store")
	}
}
