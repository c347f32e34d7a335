package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkorolev/docbrief/internal/core/domain"
)

// RecordRepository is the relational record store: two append-only tables,
// one row per processed document and one per produced summary.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082301)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	word_count INTEGER NOT NULL DEFAULT 0,
	processing_ms BIGINT NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	summary TEXT NOT NULL,
	word_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_expires_at ON documents(expires_at);
CREATE INDEX IF NOT EXISTS idx_summaries_document_id ON summaries(document_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RecordRepository) SaveDocument(ctx context.Context, rec domain.DocumentRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, filename, file_type, word_count, processing_ms, status, expires_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		rec.ID, rec.Filename, rec.FileType, rec.WordCount, rec.ProcessingMS,
		rec.Status, rec.ExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document record: %w", err)
	}
	return nil
}

func (r *RecordRepository) SaveSummary(ctx context.Context, rec domain.SummaryRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO summaries (id, document_id, summary, word_count, created_at)
VALUES ($1,$2,$3,$4,$5)
`,
		rec.ID, rec.DocumentID, rec.Summary, rec.WordCount, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert summary record: %w", err)
	}
	return nil
}

func (r *RecordRepository) GetSummaryByDocumentID(ctx context.Context, documentID string) (*domain.SummaryRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, summary, word_count, created_at
FROM summaries
WHERE document_id = $1
ORDER BY created_at DESC
LIMIT 1
`, documentID)

	var rec domain.SummaryRecord
	err := row.Scan(&rec.ID, &rec.DocumentID, &rec.Summary, &rec.WordCount, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get summary", fmt.Errorf("document %s", documentID))
		}
		return nil, fmt.Errorf("scan summary record: %w", err)
	}
	return &rec, nil
}

func (r *RecordRepository) Stats(ctx context.Context) (domain.RecordStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM documents),
	(SELECT COUNT(*) FROM summaries),
	COALESCE((SELECT SUM(word_count) FROM documents), 0),
	COALESCE((SELECT AVG(processing_ms) FROM documents), 0)
`)

	var stats domain.RecordStats
	if err := row.Scan(&stats.Documents, &stats.Summaries, &stats.TotalWords, &stats.AvgProcessingMS); err != nil {
		return domain.RecordStats{}, fmt.Errorf("scan record stats: %w", err)
	}
	return stats, nil
}

func (r *RecordRepository) ListRecent(ctx context.Context, limit int) ([]domain.DocumentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, filename, file_type, word_count, processing_ms, status, expires_at, created_at
FROM documents
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent documents: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentRecord
	for rows.Next() {
		var rec domain.DocumentRecord
		if err := rows.Scan(
			&rec.ID, &rec.Filename, &rec.FileType, &rec.WordCount,
			&rec.ProcessingMS, &rec.Status, &rec.ExpiresAt, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document records: %w", err)
	}
	return out, nil
}
