package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkorolev/docbrief/internal/core/domain"
	"github.com/mkorolev/docbrief/internal/core/ports"
)

const (
	blobFiles      = "files"
	blobProgress   = "progress"
	blobLastResult = "last_result"
)

// SessionManager hands out one SessionTracker per session ID, rehydrating
// persisted state from the session store on first touch.
type SessionManager struct {
	store     ports.SessionStore
	runner    ports.BatchRunner
	deliverer ports.SummaryDeliverer
	storage   ports.ObjectStorage
	logger    *slog.Logger

	mu       sync.Mutex
	trackers map[string]*SessionTracker
}

func NewSessionManager(
	store ports.SessionStore,
	runner ports.BatchRunner,
	deliverer ports.SummaryDeliverer,
	storage ports.ObjectStorage,
	logger *slog.Logger,
) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		store:     store,
		runner:    runner,
		deliverer: deliverer,
		storage:   storage,
		logger:    logger,
		trackers:  make(map[string]*SessionTracker),
	}
}

func (m *SessionManager) Tracker(ctx context.Context, sessionID string) *SessionTracker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.trackers[sessionID]; ok {
		return t
	}
	t := &SessionTracker{
		sessionID: sessionID,
		store:     m.store,
		runner:    m.runner,
		deliverer: m.deliverer,
		storage:   m.storage,
		logger:    m.logger.With("session_id", sessionID),
	}
	t.rehydrate(ctx)
	m.trackers[sessionID] = t
	return t
}

// SessionTracker owns every per-session mutation: uploads, progress routing,
// removal, resend and clear. All state changes are persisted to the session
// store as they happen so a page reload sees the latest picture.
type SessionTracker struct {
	sessionID string
	store     ports.SessionStore
	runner    ports.BatchRunner
	deliverer ports.SummaryDeliverer
	storage   ports.ObjectStorage
	logger    *slog.Logger

	mu            sync.Mutex
	files         []*domain.ProcessingFile
	progress      *domain.ProcessingProgress
	lastResult    *domain.BatchResult
	notifications []domain.Notification
	processing    bool
}

func (t *SessionTracker) rehydrate(ctx context.Context) {
	var files []*domain.ProcessingFile
	if t.store.Load(ctx, t.sessionID, blobFiles, &files) {
		t.files = files
	}
	var progress domain.ProcessingProgress
	if t.store.Load(ctx, t.sessionID, blobProgress, &progress) {
		t.progress = &progress
	}
	var result domain.BatchResult
	if t.store.Load(ctx, t.sessionID, blobLastResult, &result) {
		t.lastResult = &result
	}
}

// AddFiles validates and runs one batch. It is synchronous: the caller gets
// the final result. Overlapping batches are rejected outright rather than
// letting two runs interleave progress events over the same session.
func (t *SessionTracker) AddFiles(ctx context.Context, uploads []*domain.ProcessingFile, opts domain.SummaryOptions) (*domain.BatchResult, error) {
	if err := t.runner.Validate(uploads, opts); err != nil {
		t.removeStaged(ctx, uploads)
		t.mu.Lock()
		t.notify(domain.NotifyError, userMessage(err))
		t.mu.Unlock()
		return nil, err
	}

	t.mu.Lock()
	if t.processing {
		t.mu.Unlock()
		return nil, domain.WrapError(domain.ErrBatchInProgress, "add files",
			fmt.Errorf("a batch is already being processed for this session"))
	}

	batchID := uuid.NewString()
	for _, f := range uploads {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		f.BatchID = batchID
		f.Status = domain.StatusUploading
		f.Progress = 0
		f.CreatedAt = time.Now().UTC()
	}
	t.files = append(t.files, uploads...)
	t.processing = true
	t.persistFiles(ctx)
	t.mu.Unlock()

	result := t.runner.Run(ctx, uploads, opts, func(ev domain.ProcessingProgress) {
		t.applyProgress(ctx, ev)
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishBatch(ctx, uploads, result)
	return result, nil
}

// applyProgress routes one progress event. Events carrying a file ID update
// that file only; batch-level events fan out to every file in the batch.
// Events for unknown batches are ignored so a stale callback can never
// corrupt a newer run.
func (t *SessionTracker) applyProgress(ctx context.Context, ev domain.ProcessingProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	matched := false
	for _, f := range t.files {
		if f.BatchID != ev.BatchID {
			continue
		}
		if ev.FileID != "" && f.ID != ev.FileID {
			continue
		}
		f.Advance(ev.Stage, ev.Progress)
		if ev.Stage == domain.StatusFailed {
			f.Error = ev.Error
		}
		matched = true
	}
	if !matched {
		return
	}

	t.progress = &ev
	t.persistFiles(ctx)
	t.store.Save(ctx, t.sessionID, blobProgress, ev)
}

// finishBatch applies the terminal result under the lock: summaries onto
// completed files, a blanket failure otherwise, then persistence and a toast.
func (t *SessionTracker) finishBatch(ctx context.Context, uploads []*domain.ProcessingFile, result *domain.BatchResult) {
	t.processing = false

	if result.Success {
		byID := make(map[string]*domain.ProcessingFile, len(uploads))
		for _, f := range uploads {
			byID[f.ID] = f
		}
		for _, doc := range result.Documents {
			f, ok := byID[doc.ID]
			if !ok {
				continue
			}
			f.Summary = doc.Summary
			f.WordCount = doc.WordCount
			f.ProcessingMS = doc.ProcessingMS
			f.Advance(domain.StatusCompleted, 100)
		}
		t.notify(domain.NotifySuccess, fmt.Sprintf("Processed %d document(s)", len(result.Documents)))
		if result.Delivery != nil && !result.Delivery.Success {
			t.notify(domain.NotifyError, "Summaries processed, but WhatsApp delivery failed")
		}
	} else {
		for _, f := range uploads {
			if !f.Terminal() {
				f.Fail(result.Error)
			}
		}
		t.progress = nil
		t.store.Clear(ctx, t.sessionID, blobProgress)
		t.notify(domain.NotifyError, "Processing failed: "+result.Error)
	}

	t.lastResult = result
	t.removeStaged(ctx, uploads)
	t.persistFiles(ctx)
	t.store.Save(ctx, t.sessionID, blobLastResult, result)
}

// RemoveFile drops one file from the session list.
func (t *SessionTracker) RemoveFile(ctx context.Context, fileID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, f := range t.files {
		if f.ID != fileID {
			continue
		}
		t.removeStaged(ctx, []*domain.ProcessingFile{f})
		t.files = append(t.files[:i], t.files[i+1:]...)
		t.persistFiles(ctx)
		return nil
	}
	return domain.WrapError(domain.ErrNotFound, "remove file", fmt.Errorf("file %s not in session", fileID))
}

// ClearAllData wipes the session. Safe to call on an already empty session.
func (t *SessionTracker) ClearAllData(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeStaged(ctx, t.files)
	t.files = nil
	t.progress = nil
	t.lastResult = nil
	t.processing = false
	t.store.Clear(ctx, t.sessionID, blobFiles)
	t.store.Clear(ctx, t.sessionID, blobProgress)
	t.store.Clear(ctx, t.sessionID, blobLastResult)
	t.notify(domain.NotifySuccess, "Session data cleared")
}

// State returns a snapshot of the session and drains pending notifications.
// Files and progress are value copies: callers may read or encode the
// snapshot while a batch keeps mutating the live structs.
func (t *SessionTracker) State() domain.SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	files := make([]*domain.ProcessingFile, len(t.files))
	for i, f := range t.files {
		clone := *f
		files[i] = &clone
	}
	var progress *domain.ProcessingProgress
	if t.progress != nil {
		p := *t.progress
		progress = &p
	}
	state := domain.SessionState{
		Files:         files,
		Progress:      progress,
		LastResult:    t.lastResult,
		Notifications: t.notifications,
		IsProcessing:  t.processing,
	}
	t.notifications = nil
	return state
}

// Stats counts files per status, computed on demand from the live list.
func (t *SessionTracker) Stats() domain.StatusCounts {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := domain.StatusCounts{Total: len(t.files)}
	for _, f := range t.files {
		switch f.Status {
		case domain.StatusUploading:
			counts.Uploading++
		case domain.StatusExtracting:
			counts.Extracting++
		case domain.StatusSummarizing:
			counts.Summarizing++
		case domain.StatusSending:
			counts.Sending++
		case domain.StatusCompleted:
			counts.Completed++
		case domain.StatusFailed:
			counts.Failed++
		}
	}
	return counts
}

// ResendSummaries re-sends every completed summary in the session to the
// given phone number. With nothing completed it returns no delivery at all,
// only a notification; the gateway is never called.
func (t *SessionTracker) ResendSummaries(ctx context.Context, phone string) (*domain.BatchDelivery, error) {
	if !ValidatePhoneNumber(phone) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resend summaries",
			fmt.Errorf("invalid phone number"))
	}

	t.mu.Lock()
	var documents []domain.ProcessedDocument
	for _, f := range t.files {
		if f.Status != domain.StatusCompleted || strings.TrimSpace(f.Summary) == "" {
			continue
		}
		documents = append(documents, domain.ProcessedDocument{
			ID:           f.ID,
			Filename:     f.Filename,
			Summary:      f.Summary,
			WordCount:    f.WordCount,
			ProcessingMS: f.ProcessingMS,
		})
	}
	t.mu.Unlock()

	if len(documents) == 0 {
		t.mu.Lock()
		t.notify(domain.NotifyError, "No completed summaries to send")
		t.mu.Unlock()
		return nil, nil
	}

	outcomes, err := t.deliverer.SendSummaries(ctx, phone, documents)
	if err != nil {
		t.mu.Lock()
		t.notify(domain.NotifyError, "WhatsApp delivery failed")
		t.mu.Unlock()
		return &domain.BatchDelivery{Success: false, Error: err.Error()}, nil
	}

	delivery := &domain.BatchDelivery{Success: true, Outcomes: outcomes}
	for _, o := range outcomes {
		if !o.Success {
			delivery.Success = false
		}
	}
	t.mu.Lock()
	if delivery.Success {
		t.notify(domain.NotifySuccess, fmt.Sprintf("Sent %d summary(ies) to WhatsApp", len(documents)))
	} else {
		t.notify(domain.NotifyError, "Some summaries failed to send")
	}
	t.mu.Unlock()
	return delivery, nil
}

// Transcript renders a completed file's summary as a downloadable text
// artifact and returns the content plus a suggested filename.
func (t *SessionTracker) Transcript(fileID string) ([]byte, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, f := range t.files {
		if f.ID != fileID {
			continue
		}
		if f.Status != domain.StatusCompleted || strings.TrimSpace(f.Summary) == "" {
			return nil, "", domain.WrapError(domain.ErrInvalidInput, "transcript",
				fmt.Errorf("file %s has no completed summary", f.Filename))
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Summary of %s\n", f.Filename)
		fmt.Fprintf(&b, "Words: %d  Processing: %dms\n\n", f.WordCount, f.ProcessingMS)
		b.WriteString(f.Summary)
		b.WriteString("\n")

		base := strings.TrimSuffix(f.Filename, filepath.Ext(f.Filename))
		return []byte(b.String()), base + "-summary.txt", nil
	}
	return nil, "", domain.WrapError(domain.ErrNotFound, "transcript", fmt.Errorf("file %s not in session", fileID))
}

// removeStaged deletes the staged upload blobs behind files, once a batch
// reaches a terminal outcome or a file leaves the session. Removal failures
// are logged; the staging area is disposable either way.
func (t *SessionTracker) removeStaged(ctx context.Context, files []*domain.ProcessingFile) {
	if t.storage == nil {
		return
	}
	for _, f := range files {
		if f.StoragePath == "" {
			continue
		}
		if err := t.storage.Remove(ctx, f.StoragePath); err != nil {
			t.logger.Warn("staged_upload_remove_failed", "file_id", f.ID, "error", err)
			continue
		}
		f.StoragePath = ""
	}
}

// notify appends a toast. Callers must hold the lock.
func (t *SessionTracker) notify(level domain.NotificationLevel, message string) {
	t.notifications = append(t.notifications, domain.Notification{
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
}

func (t *SessionTracker) persistFiles(ctx context.Context) {
	t.store.Save(ctx, t.sessionID, blobFiles, t.files)
}

// ValidatePhoneNumber accepts international numbers in loose formatting:
// strip everything but digits, require 7 to 15 of them, and reject a
// leading zero (international numbers never start with one).
func ValidatePhoneNumber(raw string) bool {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n := digits.String()
	if len(n) < 7 || len(n) > 15 {
		return false
	}
	return n[0] != '0'
}

// userMessage unwraps the operation prefix for toast display.
func userMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && i+2 < len(msg) {
		return msg[i+2:]
	}
	return msg
}
