package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkorolev/docbrief/internal/core/domain"
	"github.com/mkorolev/docbrief/internal/infrastructure/resilience"
)

// Client is a thin REST client for the WhatsApp gateway. The gateway owns
// templating and rate limits; this side only ships summaries and reports
// per-document outcomes.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, token string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

type sendRequest struct {
	PhoneNumber string         `json:"phone_number"`
	Documents   []sendDocument `json:"documents"`
}

type sendDocument struct {
	Filename string `json:"filename"`
	Summary  string `json:"summary"`
}

type sendResponse struct {
	Results []struct {
		Filename  string `json:"filename"`
		Success   bool   `json:"success"`
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

func (c *Client) SendSummaries(ctx context.Context, phoneNumber string, docs []domain.ProcessedDocument) ([]domain.DeliveryOutcome, error) {
	request := sendRequest{PhoneNumber: phoneNumber}
	for _, doc := range docs {
		request.Documents = append(request.Documents, sendDocument{
			Filename: doc.Filename,
			Summary:  doc.Summary,
		})
	}

	var response sendResponse
	if err := c.call(ctx, "send", "/v1/messages/summaries", request, &response); err != nil {
		return nil, err
	}

	outcomes := make([]domain.DeliveryOutcome, 0, len(response.Results))
	for _, r := range response.Results {
		outcomes = append(outcomes, domain.DeliveryOutcome{
			Filename:  r.Filename,
			Success:   r.Success,
			MessageID: r.MessageID,
			Error:     r.Error,
		})
	}
	return outcomes, nil
}

func (c *Client) TestConnection(ctx context.Context) error {
	var response struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.call(ctx, "test_connection", "/v1/health", nil, &response); err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("gateway connection test: %s", response.Error)
	}
	return nil
}

func (c *Client) SendTestMessage(ctx context.Context, phoneNumber string) error {
	request := map[string]string{"phone_number": phoneNumber}
	var response struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.call(ctx, "test_message", "/v1/messages/test", request, &response); err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("gateway test message: %s", response.Error)
	}
	return nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	fn := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "whatsapp."+operation, fn, classifyGatewayError)
	} else {
		err = fn(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(operation, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &GatewayStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
