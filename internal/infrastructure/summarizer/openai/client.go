package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkorolev/docbrief/internal/core/domain"
	"github.com/mkorolev/docbrief/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Summarize(ctx context.Context, text string, opts domain.SummaryOptions) (string, error) {
	return c.complete(ctx, "summarize", buildSummaryPrompt(text, opts))
}

func (c *Client) Answer(ctx context.Context, question, summary string) (string, error) {
	return c.complete(ctx, "answer", buildAnswerPrompt(question, summary))
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, operation, prompt string) (string, error) {
	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	var response chatResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/chat/completions", request, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "summarizer."+operation, call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("summarizer %s: empty choices in response", operation)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
