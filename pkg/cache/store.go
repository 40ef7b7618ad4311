package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store persists cached responses and expires them by TTL.
// The admission cache only asks a Store which keys exist; entry contents
// and expiry are the store's business.
type Store interface {
	// Get returns the entry for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (*CacheEntry, error)
	// Set stores an entry until entry.Expires.
	Set(ctx context.Context, key string, entry *CacheEntry) error
	// Keys lists every key currently held. No order is guaranteed.
	Keys(ctx context.Context) ([]string, error)
	// Delete removes a single key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeletePattern removes all keys matching a glob pattern and reports how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)
	// Purge removes every key.
	Purge(ctx context.Context) error
}

// validatePattern rejects malformed glob patterns before any key is touched.
func validatePattern(pattern string) error {
	if pattern == "" || !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return nil
}

// matchKeys returns the keys matched by an already validated pattern.
func matchKeys(pattern string, keys []string) []string {
	var matched []string
	for _, key := range keys {
		if ok, _ := doublestar.Match(pattern, key); ok {
			matched = append(matched, key)
		}
	}
	return matched
}
