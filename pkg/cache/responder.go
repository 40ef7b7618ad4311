package cache

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Admitter decides, at store time, whether a captured response may become a new entry,
// and stores it if so.
type Admitter interface {
	Admit(ctx context.Context, key string, entry *CacheEntry) (bool, error)
}

// ResponderConfig holds the capture settings of the delegate path.
type ResponderConfig struct {
	// DefaultTTL applies when a response carries no Cache-Control max-age or Expires
	DefaultTTL time.Duration

	// MaxBodySize is the largest body that will be stored
	MaxBodySize int64
}

// Responder serves requests from a Store, or runs the application and captures
// its response on a miss. Concurrent misses for the same key share one capture.
type Responder struct {
	store  Store
	admit  Admitter
	cfg    ResponderConfig
	group  singleflight.Group
	logger zerolog.Logger
}

// NewResponder creates the serve-or-capture path over store. A nil admitter
// stores every storable response.
func NewResponder(store Store, admit Admitter, cfg ResponderConfig, logger zerolog.Logger) *Responder {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	return &Responder{
		store:  store,
		admit:  admit,
		cfg:    cfg,
		logger: logger,
	}
}

// captured is the outcome of one application run on a miss.
type captured struct {
	entry *CacheEntry
	// shareable is set when the response was storable, so it does not depend on
	// who asked for it
	shareable bool
}

// Serve answers r for the canonical key, calling next only on a miss.
//
// Concurrent misses share one application run, but a waiter only reuses the
// shared response when it was storable. Requests carrying credentials never
// join a shared run.
func (rs *Responder) Serve(w http.ResponseWriter, r *http.Request, key string, next http.Handler) {
	ctx := r.Context()

	entry, err := rs.store.Get(ctx, key)
	switch {
	case err == nil:
		CacheHits.Inc()
		rs.logger.Debug().Str("key", key).Dur("ttl", entry.TTL()).Msg("Cache hit")
		writeEntry(w, r, entry, CacheHit)
		return
	case !errors.Is(err, ErrCacheMiss):
		rs.logger.Warn().Err(err).Str("key", key).Msg("Cache get error")
	}

	CacheMisses.Inc()
	if hasCredentials(r) {
		writeEntry(w, r, rs.capture(r, key, next).entry, CacheMiss)
		return
	}

	leader := false
	v, _, _ := rs.group.Do(key, func() (any, error) {
		leader = true
		// Detached so the leader's client going away does not fail the waiters
		return rs.capture(r.WithContext(context.WithoutCancel(ctx)), key, next), nil
	})
	result := v.(*captured)

	switch {
	case leader:
	case result.shareable:
		CoalescedRequests.Inc()
	default:
		rs.logger.Debug().Str("key", key).Msg("Shared response not cacheable, running application")
		result = rs.capture(r, key, next)
	}

	writeEntry(w, r, result.entry, CacheMiss)
}

// capture runs the application into a buffer and stores the result when allowed.
func (rs *Responder) capture(r *http.Request, key string, next http.Handler) *captured {
	cw := newCaptureWriter()
	next.ServeHTTP(cw, r)
	entry := cw.entry(rs.cfg.DefaultTTL)

	if !shouldStore(entry, rs.cfg.MaxBodySize) {
		rs.logger.Debug().
			Str("key", key).
			Int("status_code", entry.StatusCode).
			Msg("Response not cacheable")
		return &captured{entry: entry}
	}
	if hasCredentials(r) && !hasDirective(entry.Headers.Get("Cache-Control"), "public") {
		rs.logger.Debug().Str("key", key).Msg("Response to a credentialed request not marked public")
		return &captured{entry: entry}
	}
	result := &captured{entry: entry, shareable: true}

	// The client may disconnect once the response is buffered; the entry is still worth keeping.
	ctx := context.WithoutCancel(r.Context())

	if rs.admit == nil {
		if err := rs.store.Set(ctx, key, entry); err != nil {
			rs.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
		}
		return result
	}

	stored, err := rs.admit.Admit(ctx, key, entry)
	switch {
	case err != nil:
		rs.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
	case stored:
		rs.logger.Debug().Str("key", key).Dur("ttl", entry.TTL()).Msg("Cached response")
	default:
		rs.logger.Debug().Str("key", key).Msg("Cache filled up during capture, response not stored")
	}
	return result
}
