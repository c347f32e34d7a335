package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkorolev/docbrief/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*RecordRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewRecordRepository(db), mock, func() { _ = db.Close() }
}

func TestSaveDocumentInsertsRow(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rec := domain.DocumentRecord{
		ID:           "doc-1",
		Filename:     "report.pdf",
		FileType:     "pdf",
		WordCount:    420,
		ProcessingMS: 1800,
		Status:       "completed",
		ExpiresAt:    now.Add(30 * 24 * time.Hour),
		CreatedAt:    now,
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(rec.ID, rec.Filename, rec.FileType, rec.WordCount, rec.ProcessingMS, rec.Status, rec.ExpiresAt, rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveDocument(context.Background(), rec); err != nil {
		t.Fatalf("SaveDocument() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetSummaryByDocumentIDReturnsNotFound(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, document_id, summary").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "summary", "word_count", "created_at"}))

	_, err := repo.GetSummaryByDocumentID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestGetSummaryByDocumentIDScansRow(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "document_id", "summary", "word_count", "created_at"}).
		AddRow("sum-1", "doc-1", "short summary", 12, now)
	mock.ExpectQuery("SELECT id, document_id, summary").
		WithArgs("doc-1").
		WillReturnRows(rows)

	rec, err := repo.GetSummaryByDocumentID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetSummaryByDocumentID() error = %v", err)
	}
	if rec.ID != "sum-1" || rec.Summary != "short summary" || rec.WordCount != 12 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestStatsScansAggregates(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"documents", "summaries", "total_words", "avg_processing_ms"}).
		AddRow(7, 7, 3200, 1500.5)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Documents != 7 || stats.TotalWords != 3200 || stats.AvgProcessingMS != 1500.5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestListRecentScansRows(t *testing.T) {
	repo, mock, cleanup := newRepoWithMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "filename", "file_type", "word_count", "processing_ms", "status", "expires_at", "created_at"}).
		AddRow("doc-2", "b.docx", "docx", 100, 900, "completed", now, now).
		AddRow("doc-1", "a.pdf", "pdf", 200, 1100, "completed", now, now)
	mock.ExpectQuery("SELECT id, filename, file_type").
		WithArgs(50).
		WillReturnRows(rows)

	recs, err := repo.ListRecent(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "doc-2" || recs[1].Filename != "a.pdf" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}
