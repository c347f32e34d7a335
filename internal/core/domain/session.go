package domain

import "time"

// NotificationLevel distinguishes success toasts from error toasts.
type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyError   NotificationLevel = "error"
)

// Notification is a user-facing message produced on terminal outcomes.
type Notification struct {
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"created_at"`
}

// SessionState is the observable per-session view: tracked files, the latest
// progress event, the last batch result and pending notifications.
type SessionState struct {
	Files         []*ProcessingFile   `json:"files"`
	Progress      *ProcessingProgress `json:"progress,omitempty"`
	LastResult    *BatchResult        `json:"last_result,omitempty"`
	Notifications []Notification      `json:"notifications,omitempty"`
	IsProcessing  bool                `json:"is_processing"`
}

// StatusCounts is the derived per-status statistic, computed on demand.
type StatusCounts struct {
	Total       int `json:"total"`
	Uploading   int `json:"uploading"`
	Extracting  int `json:"extracting"`
	Summarizing int `json:"summarizing"`
	Sending     int `json:"sending"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
}
