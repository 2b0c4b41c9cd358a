// Package homeassistant is a small REST client for the Home Assistant API.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/jarvis/internal/core/ports"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes bounds how much of a response body is read.
	maxBodyBytes = 4 << 20
)

// Client calls services on one Home Assistant instance.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

var _ ports.HomeAssistant = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds every call. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a client for baseURL (e.g. http://homeassistant.local:8123)
// authenticating with a long-lived access token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: DefaultTimeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned when Home Assistant answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("home assistant returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("home assistant returned status %d: %s", e.StatusCode, e.Body)
}

// CallService posts to /api/services/<domain>/<service>. The request body is
// the service data merged with the target fields, target keys winning.
func (c *Client) CallService(ctx context.Context, req ports.ServiceCallRequest) (*ports.HAResponse, error) {
	if req.Domain == "" || req.Service == "" {
		return nil, fmt.Errorf("home assistant service call requires domain and service")
	}

	body := make(map[string]any, len(req.ServiceData)+len(req.Target))
	for k, v := range req.ServiceData {
		body[k] = v
	}
	for k, v := range req.Target {
		body[k] = v
	}

	path := "/api/services/" + url.PathEscape(req.Domain) + "/" + url.PathEscape(req.Service)
	return c.do(ctx, http.MethodPost, path, body)
}

// GetServices returns the service catalog from /api/services.
func (c *Client) GetServices(ctx context.Context) ([]ports.DomainServices, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/services", nil)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode service catalog: %w", err)
	}
	var catalog []ports.DomainServices
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("failed to decode service catalog: %w", err)
	}
	return catalog, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*ports.HAResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("home assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read home assistant response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	out := &ports.HAResponse{Status: resp.StatusCode}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") && len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.Data); err != nil {
			return nil, fmt.Errorf("failed to decode home assistant response: %w", err)
		}
	} else {
		out.Data = string(raw)
	}
	return out, nil
}
