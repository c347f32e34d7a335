package config

import "testing"

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("MAX_FILE_BYTES", "")
	t.Setenv("MAX_BATCH_FILES", "")
	t.Setenv("ALLOWED_EXTENSIONS", "")
	t.Setenv("NATS_SUBJECT", "")

	cfg := Load()
	if cfg.MaxFileBytes != 10*1024*1024 {
		t.Fatalf("expected default max file bytes, got %d", cfg.MaxFileBytes)
	}
	if cfg.MaxBatchFiles != 5 {
		t.Fatalf("expected default max batch files 5, got %d", cfg.MaxBatchFiles)
	}
	if len(cfg.AllowedExtensions) != 4 || cfg.AllowedExtensions[0] != ".pdf" {
		t.Fatalf("expected default extensions, got %v", cfg.AllowedExtensions)
	}
	if cfg.NATSSubject != "documents.processed" {
		t.Fatalf("expected default nats subject, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("MAX_BATCH_FILES", "2")
	t.Setenv("ALLOWED_EXTENSIONS", ".PDF, .txt")
	t.Setenv("WHATSAPP_ENABLED", "true")

	cfg := Load()
	if cfg.MaxBatchFiles != 2 {
		t.Fatalf("expected max batch files 2, got %d", cfg.MaxBatchFiles)
	}
	if len(cfg.AllowedExtensions) != 2 || cfg.AllowedExtensions[0] != ".pdf" {
		t.Fatalf("expected normalized extensions, got %v", cfg.AllowedExtensions)
	}
	if !cfg.WhatsAppEnabled {
		t.Fatalf("expected whatsapp enabled")
	}
}

func TestValidateRequiresSummarizerKeyForOpenAI(t *testing.T) {
	cfg := Load()
	cfg.SummarizerProvider = "openai"
	cfg.SummarizerAPIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing summarizer key")
	}

	cfg.SummarizerAPIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRequiresGatewayKeysWhenDeliveryEnabled(t *testing.T) {
	cfg := Load()
	cfg.SummarizerProvider = "ollama"
	cfg.WhatsAppEnabled = true
	cfg.WhatsAppBaseURL = ""
	cfg.WhatsAppToken = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing gateway url")
	}

	cfg.WhatsAppBaseURL = "https://gateway.local"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing gateway token")
	}

	cfg.WhatsAppToken = "token"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
