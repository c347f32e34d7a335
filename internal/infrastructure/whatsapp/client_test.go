package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkorolev/docbrief/internal/core/domain"
)

func TestSendSummariesMapsPerDocumentOutcomes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages/summaries" {
			http.NotFound(w, r)
			return
		}
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.PhoneNumber != "14155552671" {
			t.Fatalf("unexpected phone number %q", req.PhoneNumber)
		}
		if len(req.Documents) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(req.Documents))
		}
		_, _ = w.Write([]byte(`{"results":[
			{"filename":"a.pdf","success":true,"message_id":"m-1"},
			{"filename":"b.pdf","success":false,"error":"blocked"}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "token", nil)
	outcomes, err := client.SendSummaries(context.Background(), "14155552671", []domain.ProcessedDocument{
		{Filename: "a.pdf", Summary: "sa"},
		{Filename: "b.pdf", Summary: "sb"},
	})
	if err != nil {
		t.Fatalf("SendSummaries() error = %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if !outcomes[0].Success || outcomes[0].MessageID != "m-1" {
		t.Fatalf("unexpected first outcome: %+v", outcomes[0])
	}
	if outcomes[1].Success || outcomes[1].Error != "blocked" {
		t.Fatalf("unexpected second outcome: %+v", outcomes[1])
	}
}

func TestTestConnectionReportsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"session expired"}`))
	}))
	defer server.Close()

	client := New(server.URL, "token", nil)
	err := client.TestConnection(context.Background())
	if err == nil || !strings.Contains(err.Error(), "session expired") {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestSendTestMessageWrapsRetryableStatusAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway restarting", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "token", nil)
	err := client.SendTestMessage(context.Background(), "14155552671")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error kind, got %v", err)
	}
}
