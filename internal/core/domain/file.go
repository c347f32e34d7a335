package domain

import "time"

type FileStatus string

const (
	StatusUploading   FileStatus = "uploading"
	StatusExtracting  FileStatus = "extracting"
	StatusSummarizing FileStatus = "summarizing"
	StatusSending     FileStatus = "sending"
	StatusCompleted   FileStatus = "completed"
	StatusFailed      FileStatus = "failed"
)

// stageOrder fixes the monotonic progression of a file through the pipeline.
var stageOrder = map[FileStatus]int{
	StatusUploading:   0,
	StatusExtracting:  1,
	StatusSummarizing: 2,
	StatusSending:     3,
	StatusCompleted:   4,
}

// ProcessingFile tracks a single queued file through the batch pipeline.
type ProcessingFile struct {
	ID           string     `json:"id"`
	BatchID      string     `json:"batch_id"`
	Filename     string     `json:"filename"`
	SizeBytes    int64      `json:"size_bytes"`
	StoragePath  string     `json:"storage_path,omitempty"`
	Status       FileStatus `json:"status"`
	Progress     int        `json:"progress"`
	Summary      string     `json:"summary,omitempty"`
	WordCount    int        `json:"word_count,omitempty"`
	ProcessingMS int64      `json:"processing_ms,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Terminal reports whether the file can no longer change state.
func (f *ProcessingFile) Terminal() bool {
	return f.Status == StatusCompleted || f.Status == StatusFailed
}

// Advance moves the file to status, keeping stages monotonic: a stage earlier
// than the current one is ignored, failed is reachable from any non-terminal
// state, and progress never decreases except on failure.
func (f *ProcessingFile) Advance(status FileStatus, progress int) {
	if f.Terminal() {
		return
	}
	if status == StatusFailed {
		f.Status = StatusFailed
		f.Progress = 0
		return
	}
	if stageOrder[status] < stageOrder[f.Status] {
		return
	}
	f.Status = status
	if progress > f.Progress {
		f.Progress = progress
	}
	if status == StatusCompleted {
		f.Progress = 100
	}
}

// Fail marks the file failed with the given message.
func (f *ProcessingFile) Fail(message string) {
	f.Advance(StatusFailed, 0)
	f.Error = message
}

// ProcessingProgress is a transient pipeline event; only the latest value is
// retained per session.
type ProcessingProgress struct {
	BatchID  string     `json:"batch_id"`
	FileID   string     `json:"file_id,omitempty"`
	Filename string     `json:"filename,omitempty"`
	Stage    FileStatus `json:"stage"`
	Progress int        `json:"progress"`
	Message  string     `json:"message"`
	Error    string     `json:"error,omitempty"`
}
