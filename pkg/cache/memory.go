package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryTTL bounds how long MemoryStore keeps any entry.
const DefaultMemoryTTL = 24 * time.Hour

// MemoryStore is an in-process Store. It is unbounded by count: the admission
// cache in front of it decides how many keys may exist.
type MemoryStore struct {
	lru *expirable.LRU[string, *CacheEntry]
}

// NewMemoryStore creates an in-memory store. maxTTL caps the lifetime of every
// entry regardless of its own expiry; zero or negative uses DefaultMemoryTTL.
func NewMemoryStore(maxTTL time.Duration) *MemoryStore {
	if maxTTL <= 0 {
		maxTTL = DefaultMemoryTTL
	}
	return &MemoryStore{
		// size 0 disables count-based eviction
		lru: expirable.NewLRU[string, *CacheEntry](0, nil, maxTTL),
	}
}

// Get retrieves a cache entry by key.
func (s *MemoryStore) Get(_ context.Context, key string) (*CacheEntry, error) {
	entry, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if entry.IsExpired() {
		s.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return entry, nil
}

// Set stores a cache entry. Entries that are already expired are dropped.
func (s *MemoryStore) Set(_ context.Context, key string, entry *CacheEntry) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	if entry.TTL() <= 0 {
		return nil
	}
	s.lru.Add(key, entry)
	return nil
}

// Keys lists the keys of live entries.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	keys := s.lru.Keys()
	live := keys[:0]
	for _, key := range keys {
		entry, ok := s.lru.Peek(key)
		if !ok {
			continue
		}
		if entry.IsExpired() {
			s.lru.Remove(key)
			continue
		}
		live = append(live, key)
	}
	return live, nil
}

// Delete removes a cache entry.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lru.Remove(key)
	return nil
}

// DeletePattern removes every key matching pattern.
func (s *MemoryStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if err := validatePattern(pattern); err != nil {
		return 0, err
	}
	keys, _ := s.Keys(ctx)
	matched := matchKeys(pattern, keys)
	for _, key := range matched {
		s.lru.Remove(key)
	}
	return len(matched), nil
}

// Purge removes every entry.
func (s *MemoryStore) Purge(_ context.Context) error {
	s.lru.Purge()
	return nil
}
