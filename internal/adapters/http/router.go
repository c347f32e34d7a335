// Package httpadapter exposes the document pipeline over HTTP: batch upload,
// session state, resend, transcripts, follow-up questions and statistics.
package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkorolev/docbrief/internal/core/domain"
	"github.com/mkorolev/docbrief/internal/core/ports"
	"github.com/mkorolev/docbrief/internal/core/usecase"
	"github.com/mkorolev/docbrief/internal/export"
	"github.com/mkorolev/docbrief/internal/observability/metrics"
)

const (
	sessionIDHeader = "X-Session-Id"
	sessionCookie   = "docbrief_session"
	serviceName     = "api"
)

// Options carries the tunables the router needs from configuration.
type Options struct {
	AuthToken       string
	MaxFileBytes    int64
	RateLimitRPS    int
	RateLimitBurst  int
	MaxConcurrent   int
	WhatsAppEnabled bool
}

type Router struct {
	sessions  *usecase.SessionManager
	ask       ports.QuestionAnswerer
	records   ports.RecordStore
	exporter  *export.Service
	deliverer ports.SummaryDeliverer
	storage   ports.ObjectStorage
	metrics   *metrics.HTTPServerMetrics
	opts      Options
}

func NewRouter(
	sessions *usecase.SessionManager,
	ask ports.QuestionAnswerer,
	records ports.RecordStore,
	exporter *export.Service,
	deliverer ports.SummaryDeliverer,
	storage ports.ObjectStorage,
	m *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	return &Router{
		sessions:  sessions,
		ask:       ask,
		records:   records,
		exporter:  exporter,
		deliverer: deliverer,
		storage:   storage,
		metrics:   m,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("POST /v1/batches", rt.createBatch)
	mux.HandleFunc("GET /v1/session", rt.getSession)
	mux.HandleFunc("DELETE /v1/session", rt.clearSession)
	mux.HandleFunc("DELETE /v1/session/files/{file_id}", rt.removeFile)
	mux.HandleFunc("GET /v1/session/files/{file_id}/transcript", rt.downloadTranscript)
	mux.HandleFunc("POST /v1/session/resend", rt.resendSummaries)
	mux.HandleFunc("POST /v1/questions", rt.askQuestion)
	mux.HandleFunc("GET /v1/stats", rt.getStats)
	mux.HandleFunc("GET /v1/stats/export", rt.exportStats)
	mux.HandleFunc("POST /v1/whatsapp/test", rt.testWhatsApp)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxConcurrent, 100*time.Millisecond)
	handler = rateLimitMiddleware(handler, float64(rt.opts.RateLimitRPS), rt.opts.RateLimitBurst)
	handler = authMiddleware(handler, rt.opts.AuthToken)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

type errorResponse struct {
	Error string `json:"error"`
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createBatch accepts a multipart upload with one or more "files" parts plus
// summary option fields, runs the batch synchronously and returns the result.
func (rt *Router) createBatch(w http.ResponseWriter, r *http.Request) {
	sessionID := rt.sessionID(w, r)

	if err := r.ParseMultipartForm(rt.opts.MaxFileBytes + (1 << 20)); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart payload"})
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'files' is required"})
		return
	}

	opts := domain.SummaryOptions{
		Style:       r.FormValue("style"),
		Language:    r.FormValue("language"),
		PhoneNumber: r.FormValue("phone_number"),
	}
	if v := r.FormValue("max_length"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "max_length must be a non-negative integer"})
			return
		}
		opts.MaxLength = n
	}
	if v := r.FormValue("send_whatsapp"); v != "" {
		send, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "send_whatsapp must be a boolean"})
			return
		}
		opts.SendWhatsApp = send && rt.opts.WhatsAppEnabled
	}

	files := make([]*domain.ProcessingFile, 0, len(r.MultipartForm.File["files"]))
	for _, header := range r.MultipartForm.File["files"] {
		part, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("read %s: %v", header.Filename, err)})
			return
		}

		fileID := uuid.NewString()
		storageKey := fileID + strings.ToLower(filepath.Ext(header.Filename))
		saveErr := rt.storage.Save(r.Context(), storageKey, io.LimitReader(part, rt.opts.MaxFileBytes+1))
		_ = part.Close()
		if saveErr != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to stage uploaded file"})
			return
		}

		files = append(files, &domain.ProcessingFile{
			ID:          fileID,
			Filename:    header.Filename,
			SizeBytes:   header.Size,
			StoragePath: storageKey,
		})
	}

	start := time.Now()
	result, err := rt.sessions.Tracker(r.Context(), sessionID).AddFiles(r.Context(), files, opts)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordBatch(serviceName, result.Success, time.Since(start))
		for _, doc := range result.Documents {
			rt.metrics.RecordFileOutcome(serviceName, string(domain.StatusCompleted))
			rt.metrics.RecordSummaryWords(serviceName, doc.WordCount)
		}
		if !result.Success {
			for range files {
				rt.metrics.RecordFileOutcome(serviceName, string(domain.StatusFailed))
			}
		}
		if result.Delivery != nil {
			rt.metrics.RecordDelivery(serviceName, result.Delivery.Success)
		}
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := rt.sessionID(w, r)
	tracker := rt.sessions.Tracker(r.Context(), sessionID)

	writeJSON(w, http.StatusOK, struct {
		domain.SessionState
		Stats domain.StatusCounts `json:"stats"`
	}{
		SessionState: tracker.State(),
		Stats:        tracker.Stats(),
	})
}

func (rt *Router) clearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := rt.sessionID(w, r)
	rt.sessions.Tracker(r.Context(), sessionID).ClearAllData(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (rt *Router) removeFile(w http.ResponseWriter, r *http.Request) {
	sessionID := rt.sessionID(w, r)
	fileID := r.PathValue("file_id")

	if err := rt.sessions.Tracker(r.Context(), sessionID).RemoveFile(r.Context(), fileID); err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "file_id": fileID})
}

func (rt *Router) downloadTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := rt.sessionID(w, r)
	fileID := r.PathValue("file_id")

	content, name, err := rt.sessions.Tracker(r.Context(), sessionID).Transcript(fileID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (rt *Router) resendSummaries(w http.ResponseWriter, r *http.Request) {
	sessionID := rt.sessionID(w, r)

	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	delivery, err := rt.sessions.Tracker(r.Context(), sessionID).ResendSummaries(r.Context(), req.PhoneNumber)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	if delivery == nil {
		writeJSON(w, http.StatusOK, map[string]any{"sent": false, "reason": "no completed summaries to send"})
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordDelivery(serviceName, delivery.Success)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": true, "delivery": delivery})
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"document_id"`
		Question   string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	answer, err := rt.ask.Ask(r.Context(), req.DocumentID, req.Question)
	if rt.metrics != nil {
		rt.metrics.RecordQuestion(serviceName, err)
	}
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": req.DocumentID,
		"answer":      answer,
	})
}

func (rt *Router) getStats(w http.ResponseWriter, r *http.Request) {
	sessionID := rt.sessionID(w, r)
	counts := rt.sessions.Tracker(r.Context(), sessionID).Stats()

	records, err := rt.records.Stats(r.Context())
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": counts,
		"records": records,
	})
}

func (rt *Router) exportStats(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	raw, err := rt.exporter.ExportHistoryXLSX(r.Context(), limit)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="document-history.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (rt *Router) testWhatsApp(w http.ResponseWriter, r *http.Request) {
	if !rt.opts.WhatsAppEnabled {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "whatsapp delivery is disabled"})
		return
	}

	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if !usecase.ValidatePhoneNumber(req.PhoneNumber) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid phone number"})
		return
	}

	if err := rt.deliverer.TestConnection(r.Context()); err != nil {
		rt.writeError(w, err)
		return
	}
	if err := rt.deliverer.SendTestMessage(r.Context(), req.PhoneNumber); err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// sessionID resolves the caller's session: explicit header first, then the
// session cookie, otherwise a fresh ID that is handed back via both.
func (rt *Router) sessionID(w http.ResponseWriter, r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(sessionIDHeader)); id != "" {
		return id
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(sessionIDHeader, id)
	return id
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
