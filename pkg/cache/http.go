package cache

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the fallback lifetime when a response carries no freshness headers
	DefaultTTL = time.Hour

	// DefaultMaxBodySize is the largest body that will be stored (1 MiB)
	DefaultMaxBodySize = 1 << 20

	// HeaderCache reports how a response was produced: HIT, MISS or BYPASS
	HeaderCache = "X-Cache"
)

// X-Cache values.
const (
	CacheHit    = "HIT"
	CacheMiss   = "MISS"
	CacheBypass = "BYPASS"
)

// captureWriter buffers an application response without forwarding it.
type captureWriter struct {
	statusCode  int
	header      http.Header
	body        bytes.Buffer
	wroteHeader bool
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{
		statusCode: http.StatusOK,
		header:     make(http.Header),
	}
}

func (w *captureWriter) Header() http.Header {
	return w.header
}

func (w *captureWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.statusCode = code
	w.wroteHeader = true
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.body.Write(b)
}

// entry converts the captured response to a CacheEntry.
func (w *captureWriter) entry(defaultTTL time.Duration) *CacheEntry {
	headers := w.header.Clone()
	headers.Del(HeaderCache)

	now := time.Now()
	entry := &CacheEntry{
		Data:       bytes.Clone(w.body.Bytes()),
		ETag:       headers.Get("ETag"),
		StatusCode: w.statusCode,
		Headers:    headers,
		CachedAt:   now,
		Expires:    parseExpires(headers, now, defaultTTL),
	}

	if lastModStr := headers.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}
	return entry
}

// parseExpires derives the expiry of a response.
// Cache-Control max-age wins over Expires; neither present means defaultTTL.
func parseExpires(headers http.Header, now time.Time, defaultTTL time.Duration) time.Time {
	if maxAge, ok := maxAgeSeconds(headers.Get("Cache-Control")); ok {
		return now.Add(time.Duration(maxAge) * time.Second)
	}

	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return now.Add(defaultTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return now.Add(defaultTTL)
	}

	if expires.Before(now) {
		// Already expired - the entry will not be stored
		return now
	}
	return expires
}

// maxAgeSeconds extracts max-age from a Cache-Control header.
func maxAgeSeconds(cc string) (int64, bool) {
	for _, directive := range strings.Split(cc, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.ParseInt(strings.Trim(value, `"`), 10, 64)
		if err != nil || seconds < 0 {
			return 0, false
		}
		return seconds, true
	}
	return 0, false
}

// hasDirective reports whether a Cache-Control header contains directive.
func hasDirective(cc, directive string) bool {
	for _, d := range strings.Split(cc, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(d), "=")
		if strings.EqualFold(name, directive) {
			return true
		}
	}
	return false
}

// hasCredentials reports whether r carries caller-specific credentials.
func hasCredentials(r *http.Request) bool {
	return r.Header.Get("Authorization") != "" || r.Header.Get("Cookie") != ""
}

// shouldStore decides whether a captured response may become a cache entry.
func shouldStore(entry *CacheEntry, maxBodySize int64) bool {
	if entry.StatusCode < 200 || entry.StatusCode >= 300 {
		return false
	}
	cc := entry.Headers.Get("Cache-Control")
	if hasDirective(cc, "no-store") || hasDirective(cc, "private") {
		return false
	}
	if int64(len(entry.Data)) > maxBodySize {
		return false
	}
	return entry.TTL() > 0
}

// isNotModified reports whether the client's validators match the entry,
// preferring If-None-Match over If-Modified-Since.
func isNotModified(r *http.Request, entry *CacheEntry) bool {
	if entry == nil || r == nil {
		return false
	}

	if inm := r.Header.Get("If-None-Match"); inm != "" {
		if entry.ETag == "" {
			return false
		}
		for _, tag := range strings.Split(inm, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "*" || strings.TrimPrefix(tag, "W/") == strings.TrimPrefix(entry.ETag, "W/") {
				return true
			}
		}
		return false
	}

	if ims := r.Header.Get("If-Modified-Since"); ims != "" && !entry.LastModified.IsZero() {
		since, err := http.ParseTime(ims)
		if err != nil {
			return false
		}
		return !entry.LastModified.Truncate(time.Second).After(since)
	}
	return false
}

// writeEntry replays an entry to the client.
func writeEntry(w http.ResponseWriter, r *http.Request, entry *CacheEntry, cacheStatus string) {
	h := w.Header()
	for key, values := range entry.Headers {
		for _, v := range values {
			h.Add(key, v)
		}
	}
	h.Set(HeaderCache, cacheStatus)
	if cacheStatus == CacheHit {
		h.Set("Age", strconv.FormatInt(entry.Age(), 10))
	}

	if cacheStatus == CacheHit && isNotModified(r, entry) {
		NotModifiedResponses.Inc()
		h.Del("Content-Length")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(entry.StatusCode)
	w.Write(entry.Data)
}
