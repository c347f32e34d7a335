package domain

import "time"

// DocumentRecord is the append-only metadata row kept for statistics.
type DocumentRecord struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	FileType     string    `json:"file_type"`
	WordCount    int       `json:"word_count"`
	ProcessingMS int64     `json:"processing_ms"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// SummaryRecord is the append-only summary row referencing a document record.
type SummaryRecord struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Summary    string    `json:"summary"`
	WordCount  int       `json:"word_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordEvent carries one processed document from the api to the record
// writer. Writes are at-most-once: a lost event is logged, never retried
// against the batch result.
type RecordEvent struct {
	Document DocumentRecord `json:"document"`
	Summary  SummaryRecord  `json:"summary"`
}

// RecordStats is the aggregate view served from the record store.
type RecordStats struct {
	Documents       int64   `json:"documents"`
	Summaries       int64   `json:"summaries"`
	TotalWords      int64   `json:"total_words"`
	AvgProcessingMS float64 `json:"avg_processing_ms"`
}
