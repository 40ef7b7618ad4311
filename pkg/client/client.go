// Package client is a Go client for the apicache administrative API.
//
// Server (5xx) and network failures are retried with jittered exponential
// backoff; 4xx responses are returned immediately as *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/apicache/pkg/api"
	"github.com/Sternrassler/apicache/pkg/cache"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "apicache_client_requests_total",
	Help: "Total admin API requests by operation and status",
}, []string{"operation", "status"})

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Config holds the client configuration.
type Config struct {
	// BaseURL of the apicache server, e.g. "http://localhost:8080" (REQUIRED)
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout per HTTP attempt
	Timeout time.Duration

	// Retry policy for server and network errors
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "apicache-client/0.1.0",
		Timeout:   10 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// Client talks to the admin endpoints of one apicache server.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new admin client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https (got %q)", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		config:     cfg,
		logger:     log.With().Str("component", "apicache-client").Logger(),
	}, nil
}

// Stats returns occupancy, capacity and the cached keys.
func (c *Client) Stats(ctx context.Context) (cache.Stats, error) {
	var stats cache.Stats
	err := c.do(ctx, "stats", http.MethodGet, api.PathStats, nil, nil, &stats)
	return stats, err
}

// MaxSize returns the current capacity limit.
func (c *Client) MaxSize(ctx context.Context) (int, error) {
	var resp api.MaxSizeResponse
	if err := c.do(ctx, "get_max_size", http.MethodGet, api.PathMaxSize, nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.MaxSize, nil
}

// SetMaxSize asks the server to change the capacity limit. raw is passed
// through unparsed so the server applies its own validation; the accepted
// limit is returned.
func (c *Client) SetMaxSize(ctx context.Context, raw string) (int, error) {
	value := json.RawMessage(strconv.Quote(raw))
	if n, err := strconv.Atoi(raw); err == nil {
		value = json.RawMessage(strconv.Itoa(n))
	}

	var resp api.MaxSizeResponse
	err := c.do(ctx, "set_max_size", http.MethodPut, api.PathMaxSize, nil, api.MaxSizeRequest{MaxSize: value}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.MaxSize, nil
}

// ClearAll removes every cached entry.
func (c *Client) ClearAll(ctx context.Context) error {
	return c.do(ctx, "clear_all", http.MethodDelete, api.PathClearAll, nil, nil, nil)
}

// ClearKey removes the entry stored under one canonical key.
func (c *Client) ClearKey(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return c.do(ctx, "clear_key", http.MethodDelete, api.PathEntries, url.Values{"key": {key}}, nil, nil)
}

// ClearPattern removes every entry whose key matches a glob pattern and
// returns how many were removed.
func (c *Client) ClearPattern(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		return 0, fmt.Errorf("pattern is required")
	}
	var resp api.ClearResponse
	if err := c.do(ctx, "clear_pattern", http.MethodDelete, api.PathEntries, url.Values{"pattern": {pattern}}, nil, &resp); err != nil {
		return 0, err
	}
	if resp.Deleted == nil {
		return 0, nil
	}
	return *resp.Deleted, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// do sends one admin request with retries and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	target := c.baseURL.JoinPath(path)
	target.RawQuery = query.Encode()

	return retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		return c.attempt(ctx, operation, method, target.String(), payload, out)
	}, classifyError)
}

// attempt performs a single HTTP round trip.
func (c *Client) attempt(ctx context.Context, operation, method, target string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(operation, "network_error").Inc()
		if ctx.Err() != nil {
			// The caller gave up; not a transient failure
			return fmt.Errorf("send request: %w", err)
		}
		return &networkError{err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		apiErr := decodeError(resp)
		c.logger.Debug().
			Str("operation", operation).
			Int("status_code", resp.StatusCode).
			Str("code", apiErr.Code).
			Msg("Admin request failed")
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError builds an APIError from an error response, tolerating non-JSON bodies.
func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Class:      classifyStatus(resp.StatusCode),
		Message:    resp.Status,
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
		apiErr.Requested = body.Requested
		apiErr.Current = body.Current
	} else if text := strings.TrimSpace(string(data)); text != "" {
		apiErr.Message = text
	}
	return apiErr
}

// networkError marks transport failures for retry classification.
type networkError struct {
	err error
}

func (e *networkError) Error() string { return e.err.Error() }
func (e *networkError) Unwrap() error { return e.err }

// classifyError categorizes an attempt failure for the retry loop.
func classifyError(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	var netErr *networkError
	if errors.As(err, &netErr) {
		return ErrorClassNetwork
	}
	return ErrorClassClient
}
