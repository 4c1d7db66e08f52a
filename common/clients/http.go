package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/lyzr/pubmigrate/common/ratelimit"
)

// Logger interface for HTTP client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// HTTPClient wraps http.Client with context-aware helpers
// It sets static headers (auth) and adds metadata from context
type HTTPClient struct {
	client  *http.Client
	logger  Logger
	headers map[string]string
	limiter ratelimit.Limiter
}

// NewHTTPClient creates a new HTTP client wrapper
func NewHTTPClient(client *http.Client, logger Logger, headers map[string]string) *HTTPClient {
	return &HTTPClient{
		client:  client,
		logger:  logger,
		headers: headers,
	}
}

// BearerHeaders returns the JSON API headers for a bearer token
func BearerHeaders(token string) map[string]string {
	h := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}

// SetLimiter throttles every request through l. A nil l disables throttling.
func (c *HTTPClient) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// DoRequest creates and executes an HTTP request, extracting metadata from context
func (c *HTTPClient) DoRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	if runID, ok := GetRunID(ctx); ok {
		req.Header.Set("X-Migration-Run", runID)
	}

	c.logger.Debug("http request", "method", method, "url", url)
	return c.client.Do(req)
}

// DoJSON sends in (when non-nil) as JSON and returns the raw response body.
// Non-2xx responses are returned as *APIError.
func (c *HTTPClient) DoJSON(ctx context.Context, method, url string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	resp, err := c.DoRequest(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s %s: %w", method, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(method, url, resp.StatusCode, raw)
	}
	return raw, nil
}
