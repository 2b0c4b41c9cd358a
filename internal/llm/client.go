// Package llm adapts an OpenAI-compatible chat completion API to the
// ports.ChatModel used by the fallback orchestrator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/tjfontaine/jarvis/internal/core/ports"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTimeout     = 15 * time.Second
	DefaultTemperature = 0.2
)

// ErrEmptyCompletion is returned when the model answered without content.
var ErrEmptyCompletion = errors.New("model response missing message content")

// Client requests JSON-object completions.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

var _ ports.ChatModel = (*Client)(nil)

type settings struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	temperature float32
}

// Option configures the client.
type Option func(*settings)

// WithBaseURL points the client at another OpenAI-compatible endpoint.
// The URL includes the version segment, e.g. http://localhost:11434/v1.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *settings) {
		s.httpClient = httpClient
	}
}

// WithTimeout bounds every completion. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float32) Option {
	return func(s *settings) {
		s.temperature = t
	}
}

// New creates a client for model. An empty model selects DefaultModel.
func New(apiKey, model string, opts ...Option) *Client {
	s := settings{timeout: DefaultTimeout, temperature: DefaultTemperature}
	for _, opt := range opts {
		opt(&s)
	}

	cfg := openai.DefaultConfig(apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}
	if s.httpClient != nil {
		cfg.HTTPClient = s.httpClient
	}
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: s.temperature,
		timeout:     s.timeout,
	}
}

// Complete sends messages and returns the trimmed content of the first
// choice. The call is abandoned once the client timeout elapses.
func (c *Client) Complete(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
