package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/apicache/internal/server"
	"github.com/Sternrassler/apicache/internal/testutil"
	"github.com/Sternrassler/apicache/pkg/api"
	"github.com/Sternrassler/apicache/pkg/cache"
)

// setupServer starts an apicache server backed by a memory store and returns
// a client for it plus a function that issues application requests.
func setupServer(t *testing.T, maxSize int) (*Client, func(path string)) {
	t.Helper()

	logger := zerolog.Nop()
	c, err := cache.New(cache.NewMemoryStore(time.Hour), cache.Config{MaxSize: maxSize, Logger: &logger})
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	srv := httptest.NewServer(server.New(server.Deps{
		Cache:  c,
		App:    testutil.NewMockOrigin(),
		Logger: &logger,
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL)
	cfg.Retry = fastRetry()
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	get := func(path string) {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
	}
	return client, get
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"http", "http://localhost:8080", false},
		{"https with trailing slash", "https://cache.example.com/", false},
		{"empty", "", true},
		{"no scheme", "localhost:8080", true},
		{"unsupported scheme", "ftp://localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(DefaultConfig(tt.baseURL))
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	client, err := New(Config{BaseURL: "http://localhost:8080"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", client.httpClient.Timeout)
	}
}

func TestClient_AdminRoundTrip(t *testing.T) {
	client, get := setupServer(t, 3)
	ctx := context.Background()

	get("/users/1")
	get("/users/2")
	get("/orders?b=2&a=1")

	stats, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Size != 3 || !stats.IsFull {
		t.Errorf("Stats() = %+v, want size 3 and full", stats)
	}
	if !slices.Contains(stats.Items, "/orders?a=1&b=2") {
		t.Errorf("Stats().Items = %v, missing canonical key", stats.Items)
	}

	got, err := client.SetMaxSize(ctx, "5")
	if err != nil || got != 5 {
		t.Fatalf("SetMaxSize(5) = %d, %v, want 5, nil", got, err)
	}
	if got, _ := client.MaxSize(ctx); got != 5 {
		t.Errorf("MaxSize() = %d, want 5", got)
	}

	if err := client.ClearKey(ctx, "/orders?a=1&b=2"); err != nil {
		t.Fatalf("ClearKey() error = %v", err)
	}

	deleted, err := client.ClearPattern(ctx, "/users/*")
	if err != nil {
		t.Fatalf("ClearPattern() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("ClearPattern() = %d, want 2", deleted)
	}

	get("/a")
	if err := client.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	stats, _ = client.Stats(ctx)
	if stats.Size != 0 {
		t.Errorf("Stats().Size after ClearAll = %d, want 0", stats.Size)
	}
}

func TestClient_SetMaxSizeErrors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode string
	}{
		{"non-numeric", "abc", api.CodeInvalidCapacity},
		{"zero", "0", api.CodeInvalidCapacity},
		{"negative", "-4", api.CodeInvalidCapacity},
		{"fractional", "2.5", api.CodeInvalidCapacity},
		{"empty", "", api.CodeInvalidCapacity},
		{"below occupancy", "1", api.CodeCapacityTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, get := setupServer(t, 10)
			get("/a")
			get("/b")

			_, err := client.SetMaxSize(context.Background(), tt.raw)
			if !errors.Is(err, cache.ErrInvalidCapacity) {
				t.Fatalf("SetMaxSize(%q) error = %v, want ErrInvalidCapacity", tt.raw, err)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %v is not an *APIError", err)
			}
			if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != tt.wantCode {
				t.Errorf("APIError = %d/%s, want 400/%s", apiErr.StatusCode, apiErr.Code, tt.wantCode)
			}
			if tt.wantCode == api.CodeCapacityTooSmall && (apiErr.Requested != 1 || apiErr.Current != 2) {
				t.Errorf("Requested/Current = %d/%d, want 1/2", apiErr.Requested, apiErr.Current)
			}

			if got, _ := client.MaxSize(context.Background()); got != 10 {
				t.Errorf("MaxSize() after rejection = %d, want 10", got)
			}
		})
	}
}

func TestClient_ClearPatternErrors(t *testing.T) {
	client, _ := setupServer(t, 10)

	_, err := client.ClearPattern(context.Background(), "/users/[")
	if !errors.Is(err, doublestar.ErrBadPattern) {
		t.Errorf("ClearPattern() error = %v, want ErrBadPattern", err)
	}

	if _, err := client.ClearPattern(context.Background(), ""); err == nil {
		t.Error("ClearPattern(\"\") should fail without a request")
	}
	if err := client.ClearKey(context.Background(), ""); err == nil {
		t.Error("ClearKey(\"\") should fail without a request")
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"max_size": 42}`)
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.Retry = fastRetry()
	client, _ := New(cfg)

	got, err := client.MaxSize(context.Background())
	if err != nil {
		t.Fatalf("MaxSize() error = %v", err)
	}
	if got != 42 {
		t.Errorf("MaxSize() = %d, want 42", got)
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", calls.Load())
	}
}

func TestClient_RetryExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.Retry = fastRetry()
	client, _ := New(cfg)

	err := client.ClearAll(context.Background())
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("ClearAll() error = %v, want ErrRetryExhausted", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v does not wrap *APIError", err)
	}
	if apiErr.Class != ErrorClassServer || apiErr.Message != "upstream exploded" {
		t.Errorf("APIError = %+v, want server class with plain-text message", apiErr)
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", calls.Load())
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.Retry = fastRetry()
	client, _ := New(cfg)

	_, err := client.Stats(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Stats() error = %v, want 404 APIError", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("client errors must not be retried")
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := DefaultConfig(url)
	cfg.Retry = fastRetry()
	client, _ := New(cfg)

	_, err := client.MaxSize(context.Background())
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("MaxSize() error = %v, want ErrRetryExhausted", err)
	}
	var netErr *networkError
	if !errors.As(err, &netErr) {
		t.Errorf("error %v does not wrap a network error", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, _ := New(DefaultConfig(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Stats(ctx)
	if err == nil {
		t.Fatal("Stats() should fail once the context is done")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stats() error = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled request was retried")
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	var gotUA, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"max_size": 7}`)
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.UserAgent = "test-agent/1.0"
	client, _ := New(cfg)

	tests := []struct {
		raw  string
		want string
	}{
		{"7", `{"max_size":7}`},
		{"007", `{"max_size":7}`},
		{"seven", `{"max_size":"seven"}`},
	}
	for _, tt := range tests {
		if _, err := client.SetMaxSize(context.Background(), tt.raw); err != nil {
			t.Fatalf("SetMaxSize(%q) error = %v", tt.raw, err)
		}
		if string(gotBody) != tt.want {
			t.Errorf("SetMaxSize(%q) sent %s, want %s", tt.raw, gotBody, tt.want)
		}
	}

	if gotUA != "test-agent/1.0" {
		t.Errorf("User-Agent = %q, want test-agent/1.0", gotUA)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
}
