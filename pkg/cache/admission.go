package cache

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultMaxSize is the capacity limit at startup.
const DefaultMaxSize = 10

// Decision is the outcome of the admission gate for one request.
type Decision int

const (
	// Delegate hands the request to the store's lookup/serve/capture path.
	Delegate Decision = iota
	// Bypass sends the request straight to the application without touching the cache.
	Bypass
)

// String returns the decision name used in logs.
func (d Decision) String() string {
	if d == Bypass {
		return "bypass"
	}
	return "delegate"
}

// Config holds the admission cache configuration.
type Config struct {
	// MaxSize is the initial capacity limit (number of entries)
	MaxSize int

	// DefaultTTL applies to responses without freshness headers
	DefaultTTL time.Duration

	// MaxBodySize is the largest response body that will be stored
	MaxBodySize int64

	// Logger overrides the component logger
	Logger *zerolog.Logger
}

// DefaultConfig returns the startup configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:     DefaultMaxSize,
		DefaultTTL:  DefaultTTL,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// Stats is a snapshot of occupancy and capacity.
type Stats struct {
	Size    int      `json:"size"`
	MaxSize int      `json:"max_size"`
	IsFull  bool     `json:"is_full"`
	Items   []string `json:"items"`
}

// AdmissionCache bounds how many distinct keys a Store may hold.
//
// Once the store holds MaxSize keys, requests for keys it does not already hold
// bypass the cache entirely; requests for known keys keep being served and
// refreshed. Nothing is ever evicted to make room.
//
// The capacity limit is guarded by mu: Gate holds the read lock for its
// occupancy check, while SetMaxSize, Clear and store-time admission hold the
// write lock, so a resize, a clear or an insert never interleaves with a
// decision.
type AdmissionCache struct {
	store     Store
	responder *Responder
	logger    zerolog.Logger

	mu      sync.RWMutex
	maxSize int
}

// New creates an admission-controlled cache over store. The capacity gauge is
// shared by every cache in the process and tracks the latest New or SetMaxSize.
func New(store Store, cfg Config) (*AdmissionCache, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.MaxSize < 1 {
		return nil, fmt.Errorf("%w: max size must be >= 1 (got %d)", ErrInvalidCapacity, cfg.MaxSize)
	}

	logger := log.With().Str("component", "apicache").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	c := &AdmissionCache{
		store:   store,
		logger:  logger,
		maxSize: cfg.MaxSize,
	}
	c.responder = NewResponder(store, c, ResponderConfig{
		DefaultTTL:  cfg.DefaultTTL,
		MaxBodySize: cfg.MaxBodySize,
	}, logger)

	CacheCapacity.Set(float64(cfg.MaxSize))
	return c, nil
}

// Store returns the underlying store.
func (c *AdmissionCache) Store() Store {
	return c.store
}

// Items lists the keys currently cached. No order is guaranteed.
func (c *AdmissionCache) Items(ctx context.Context) ([]string, error) {
	return c.store.Keys(ctx)
}

// Size returns the number of cached keys.
func (c *AdmissionCache) Size(ctx context.Context) (int, error) {
	items, err := c.store.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// MaxSize returns the current capacity limit.
func (c *AdmissionCache) MaxSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxSize
}

// IsFull reports whether occupancy equals the capacity limit exactly.
func (c *AdmissionCache) IsFull(ctx context.Context) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	size, err := c.Size(ctx)
	if err != nil {
		return false, err
	}
	return size == c.maxSize, nil
}

// Gate canonicalizes r in place and decides whether it may use the cache.
// It returns Bypass when the cache is full and does not hold the request's key.
// A query string that does not parse is never cached: the decision is Bypass
// and r is forwarded as received. On a store error the decision is Bypass and
// the error is returned.
func (c *AdmissionCache) Gate(r *http.Request) (Decision, string, error) {
	key, err := Canonicalize(r)
	if err != nil {
		c.logger.Debug().Err(err).Str("uri", r.URL.RequestURI()).Msg("Malformed query, bypassing cache")
		return Bypass, r.URL.RequestURI(), nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	items, err := c.store.Keys(r.Context())
	if err != nil {
		return Bypass, key, fmt.Errorf("list cache keys: %w", err)
	}
	CacheEntries.Set(float64(len(items)))

	if len(items) == c.maxSize && !slices.Contains(items, key) {
		return Bypass, key, nil
	}
	return Delegate, key, nil
}

// Admit stores entry under key unless that would take a new key past the
// capacity limit. Refreshing a key already present is always allowed.
func (c *AdmissionCache) Admit(ctx context.Context, key string, entry *CacheEntry) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.store.Keys(ctx)
	if err != nil {
		return false, fmt.Errorf("list cache keys: %w", err)
	}
	if !slices.Contains(items, key) && len(items) >= c.maxSize {
		AdmissionRejects.Inc()
		return false, nil
	}

	if err := c.store.Set(ctx, key, entry); err != nil {
		return false, err
	}
	return true, nil
}

// SetMaxSize parses raw and replaces the capacity limit.
// It fails with ErrInvalidCapacity when raw is not a positive integer, and with
// *CapacityTooSmallError when the value is below the current occupancy.
// On failure the limit is unchanged.
func (c *AdmissionCache) SetMaxSize(ctx context.Context, raw string) error {
	value, err := parseCapacity(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	size, err := c.Size(ctx)
	if err != nil {
		return fmt.Errorf("count cache entries: %w", err)
	}
	if value < size {
		return &CapacityTooSmallError{Requested: value, Current: size}
	}

	previous := c.maxSize
	c.maxSize = value
	CacheCapacity.Set(float64(value))

	c.logger.Info().
		Int("previous", previous).
		Int("max_size", value).
		Int("size", size).
		Msg("Cache capacity changed")
	return nil
}

// Clear removes every entry when target is empty, otherwise only the entry
// stored under target. Store errors are returned unchanged.
func (c *AdmissionCache) Clear(ctx context.Context, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if target == "" {
		if err := c.store.Purge(ctx); err != nil {
			return err
		}
		CacheEntries.Set(0)
		c.logger.Info().Msg("Cache cleared")
		return nil
	}

	if err := c.store.Delete(ctx, target); err != nil {
		return err
	}
	c.logger.Info().Str("key", target).Msg("Cache entry cleared")
	return nil
}

// ClearMatching removes every entry whose key matches a glob pattern and
// reports how many were removed. Malformed patterns fail with doublestar.ErrBadPattern.
func (c *AdmissionCache) ClearMatching(ctx context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.store.DeletePattern(ctx, pattern)
	if err != nil {
		return 0, err
	}
	c.logger.Info().Str("pattern", pattern).Int("deleted", n).Msg("Cache entries cleared")
	return n, nil
}

// Stats returns occupancy, capacity and the sorted key listing.
func (c *AdmissionCache) Stats(ctx context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items, err := c.store.Keys(ctx)
	if err != nil {
		return Stats{}, err
	}
	if items == nil {
		items = []string{}
	}
	slices.Sort(items)

	return Stats{
		Size:    len(items),
		MaxSize: c.maxSize,
		IsFull:  len(items) == c.maxSize,
		Items:   items,
	}, nil
}

// Middleware gates every cacheable request. Bypassed requests go straight to
// next; delegated ones are served from the store or captured into it.
func (c *AdmissionCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isCacheableMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		decision, key, err := c.Gate(r)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Admission check failed, bypassing cache")
		}

		c.logger.Debug().
			Str("key", key).
			Str("decision", decision.String()).
			Msg("Admission decision")

		if decision == Bypass {
			if err == nil {
				CacheBypasses.Inc()
			}
			w.Header().Set(HeaderCache, CacheBypass)
			next.ServeHTTP(w, r)
			return
		}

		c.responder.Serve(w, r, key, next)
	})
}
