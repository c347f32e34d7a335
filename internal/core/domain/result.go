package domain

// SummaryOptions controls how a batch is summarized and delivered.
type SummaryOptions struct {
	Style        string `json:"style"`
	Language     string `json:"language"`
	MaxLength    int    `json:"max_length"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	SendWhatsApp bool   `json:"send_whatsapp"`
}

// ProcessedDocument is one per-document outcome of a batch run.
type ProcessedDocument struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	Summary      string `json:"summary"`
	WordCount    int    `json:"word_count"`
	ProcessingMS int64  `json:"processing_ms"`
}

// DeliveryOutcome is the per-document result of a WhatsApp send.
type DeliveryOutcome struct {
	Filename  string `json:"filename"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchDelivery aggregates the delivery leg of a batch.
type BatchDelivery struct {
	Success  bool              `json:"success"`
	Outcomes []DeliveryOutcome `json:"outcomes,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// BatchResult is produced once per batch and is immutable after creation.
// A session holds at most one as its last result.
type BatchResult struct {
	BatchID   string              `json:"batch_id"`
	Documents []ProcessedDocument `json:"documents"`
	Delivery  *BatchDelivery      `json:"delivery,omitempty"`
	TotalMS   int64               `json:"total_ms"`
	Success   bool                `json:"success"`
	Error     string              `json:"error,omitempty"`
}

// ProcessRequest is the request contract of the batch processing collaborator.
type ProcessRequest struct {
	BatchID    string
	Files      []*ProcessingFile
	Options    SummaryOptions
	OnProgress func(ProcessingProgress)
}

// ProcessResult is the response contract of the batch processing collaborator.
type ProcessResult struct {
	Success   bool
	Documents []ProcessedDocument
	Delivery  *BatchDelivery
	Error     string
}
