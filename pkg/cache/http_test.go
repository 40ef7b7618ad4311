package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCaptureWriter_Entry(t *testing.T) {
	cw := newCaptureWriter()
	cw.Header().Set("Content-Type", "application/json")
	cw.Header().Set("ETag", `"abc123"`)
	cw.Header().Set("Last-Modified", "Sun, 01 Jan 2023 12:00:00 GMT")
	cw.Header().Set(HeaderCache, CacheMiss)
	cw.WriteHeader(http.StatusCreated)
	cw.WriteHeader(http.StatusInternalServerError) // ignored, first status wins
	cw.Write([]byte(`{"test": "data"}`))

	entry := cw.entry(5 * time.Minute)

	if entry.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %v, want %v", entry.StatusCode, http.StatusCreated)
	}
	if string(entry.Data) != `{"test": "data"}` {
		t.Errorf("Data = %s, want %s", entry.Data, `{"test": "data"}`)
	}
	if entry.ETag != `"abc123"` {
		t.Errorf("ETag = %v, want %v", entry.ETag, `"abc123"`)
	}
	if entry.LastModified.IsZero() {
		t.Error("LastModified was not parsed")
	}
	if entry.Headers.Get(HeaderCache) != "" {
		t.Error("X-Cache header must not be stored")
	}
	if ttl := entry.TTL(); ttl < 4*time.Minute || ttl > 5*time.Minute {
		t.Errorf("TTL() = %v, want about 5m", ttl)
	}
}

func TestParseExpires(t *testing.T) {
	now := time.Now()
	future := now.Add(1 * time.Hour)
	past := now.Add(-1 * time.Hour)

	tests := []struct {
		name    string
		headers http.Header
		want    time.Time
	}{
		{
			name:    "no freshness headers",
			headers: http.Header{},
			want:    now.Add(DefaultTTL),
		},
		{
			name:    "max-age",
			headers: http.Header{"Cache-Control": []string{"public, max-age=120"}},
			want:    now.Add(120 * time.Second),
		},
		{
			name: "max-age wins over expires",
			headers: http.Header{
				"Cache-Control": []string{"max-age=60"},
				"Expires":       []string{future.Format(http.TimeFormat)},
			},
			want: now.Add(60 * time.Second),
		},
		{
			name:    "valid expires header",
			headers: http.Header{"Expires": []string{future.Format(http.TimeFormat)}},
			want:    future,
		},
		{
			name:    "invalid expires header",
			headers: http.Header{"Expires": []string{"not a valid date"}},
			want:    now.Add(DefaultTTL),
		},
		{
			name:    "expires in the past",
			headers: http.Header{"Expires": []string{past.Format(http.TimeFormat)}},
			want:    now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseExpires(tt.headers, now, DefaultTTL)
			diff := got.Sub(tt.want)
			if diff < -2*time.Second || diff > 2*time.Second {
				t.Errorf("parseExpires() = %v, want approximately %v (diff: %v)", got, tt.want, diff)
			}
		})
	}
}

func TestMaxAgeSeconds(t *testing.T) {
	tests := []struct {
		cc     string
		want   int64
		wantOK bool
	}{
		{"max-age=60", 60, true},
		{"public, Max-Age=10", 10, true},
		{`max-age="30"`, 30, true},
		{"max-age=0", 0, true},
		{"max-age=-1", 0, false},
		{"max-age=abc", 0, false},
		{"no-cache", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.cc, func(t *testing.T) {
			got, ok := maxAgeSeconds(tt.cc)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("maxAgeSeconds(%q) = (%v, %v), want (%v, %v)", tt.cc, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestShouldStore(t *testing.T) {
	fresh := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		entry *CacheEntry
		want  bool
	}{
		{
			name:  "ok response",
			entry: &CacheEntry{StatusCode: 200, Headers: http.Header{}, Expires: fresh},
			want:  true,
		},
		{
			name:  "server error",
			entry: &CacheEntry{StatusCode: 500, Headers: http.Header{}, Expires: fresh},
			want:  false,
		},
		{
			name:  "redirect",
			entry: &CacheEntry{StatusCode: 302, Headers: http.Header{}, Expires: fresh},
			want:  false,
		},
		{
			name: "no-store",
			entry: &CacheEntry{
				StatusCode: 200,
				Headers:    http.Header{"Cache-Control": []string{"no-store"}},
				Expires:    fresh,
			},
			want: false,
		},
		{
			name: "private",
			entry: &CacheEntry{
				StatusCode: 200,
				Headers:    http.Header{"Cache-Control": []string{"private, max-age=60"}},
				Expires:    fresh,
			},
			want: false,
		},
		{
			name:  "body too large",
			entry: &CacheEntry{StatusCode: 200, Headers: http.Header{}, Expires: fresh, Data: make([]byte, 11)},
			want:  false,
		},
		{
			name:  "already expired",
			entry: &CacheEntry{StatusCode: 200, Headers: http.Header{}, Expires: time.Now().Add(-time.Second)},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldStore(tt.entry, 10); got != tt.want {
				t.Errorf("shouldStore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotModified(t *testing.T) {
	lastMod := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header http.Header
		entry  *CacheEntry
		want   bool
	}{
		{
			name:   "nil entry",
			header: http.Header{"If-None-Match": []string{`"abc"`}},
			entry:  nil,
			want:   false,
		},
		{
			name:   "matching etag",
			header: http.Header{"If-None-Match": []string{`"abc"`}},
			entry:  &CacheEntry{ETag: `"abc"`},
			want:   true,
		},
		{
			name:   "weak etag comparison",
			header: http.Header{"If-None-Match": []string{`W/"abc"`}},
			entry:  &CacheEntry{ETag: `"abc"`},
			want:   true,
		},
		{
			name:   "one of several etags",
			header: http.Header{"If-None-Match": []string{`"x", "abc"`}},
			entry:  &CacheEntry{ETag: `"abc"`},
			want:   true,
		},
		{
			name:   "different etag",
			header: http.Header{"If-None-Match": []string{`"xyz"`}},
			entry:  &CacheEntry{ETag: `"abc"`},
			want:   false,
		},
		{
			name:   "if-none-match takes precedence",
			header: http.Header{"If-None-Match": []string{`"xyz"`}, "If-Modified-Since": []string{lastMod.Format(http.TimeFormat)}},
			entry:  &CacheEntry{ETag: `"abc"`, LastModified: lastMod},
			want:   false,
		},
		{
			name:   "not modified since",
			header: http.Header{"If-Modified-Since": []string{lastMod.Format(http.TimeFormat)}},
			entry:  &CacheEntry{LastModified: lastMod},
			want:   true,
		},
		{
			name:   "modified since",
			header: http.Header{"If-Modified-Since": []string{lastMod.Add(-time.Hour).Format(http.TimeFormat)}},
			entry:  &CacheEntry{LastModified: lastMod},
			want:   false,
		},
		{
			name:   "no validators",
			header: http.Header{},
			entry:  &CacheEntry{ETag: `"abc"`, LastModified: lastMod},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Header = tt.header
			if got := isNotModified(req, tt.entry); got != tt.want {
				t.Errorf("isNotModified() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteEntry(t *testing.T) {
	entry := &CacheEntry{
		Data:       []byte("hello"),
		ETag:       `"v1"`,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"text/plain"}},
		CachedAt:   time.Now().Add(-30 * time.Second),
		Expires:    time.Now().Add(time.Hour),
	}

	t.Run("hit", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeEntry(w, httptest.NewRequest("GET", "/", nil), entry, CacheHit)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if w.Body.String() != "hello" {
			t.Errorf("body = %q, want %q", w.Body.String(), "hello")
		}
		if got := w.Header().Get(HeaderCache); got != CacheHit {
			t.Errorf("X-Cache = %v, want %v", got, CacheHit)
		}
		if got := w.Header().Get("Age"); !strings.HasPrefix(got, "3") {
			t.Errorf("Age = %v, want about 30", got)
		}
	})

	t.Run("conditional hit", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("If-None-Match", `"v1"`)
		w := httptest.NewRecorder()
		writeEntry(w, req, entry, CacheHit)

		if w.Code != http.StatusNotModified {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotModified)
		}
		if w.Body.Len() != 0 {
			t.Errorf("304 must not carry a body, got %q", w.Body.String())
		}
	})

	t.Run("miss ignores validators", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("If-None-Match", `"v1"`)
		w := httptest.NewRecorder()
		writeEntry(w, req, entry, CacheMiss)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Header().Get("Age"); got != "" {
			t.Errorf("Age = %v, want empty on miss", got)
		}
	})
}
