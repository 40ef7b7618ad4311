package cache

import (
	"net/http"
	"time"
)

// CacheEntry represents a captured application response.
type CacheEntry struct {
	// Data is the response body
	Data []byte `json:"data"`
	// ETag of the response, used to answer If-None-Match
	ETag string `json:"etag,omitempty"`
	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`
	// LastModified from the response Last-Modified header, used to answer If-Modified-Since
	LastModified time.Time `json:"last_modified,omitempty"`
	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`
	// Headers are the response headers
	Headers http.Header `json:"headers"`
	// CachedAt is when the response was captured
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the response was captured, in whole seconds.
func (e *CacheEntry) Age() int64 {
	if e.CachedAt.IsZero() {
		return 0
	}
	age := time.Since(e.CachedAt)
	if age < 0 {
		return 0
	}
	return int64(age / time.Second)
}
