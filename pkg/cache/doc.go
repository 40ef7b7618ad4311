// Package cache provides an admission-controlled HTTP response cache.
//
// The cache sits in front of an application handler and features:
//
// - Canonical keys: query parameters are sorted, so /search?b=2&a=1 and
// /search?a=1&b=2 share one entry
// - A capacity limit on the number of distinct keys, resizable at runtime
// - Admission control: a full cache refuses new keys but keeps serving and
// refreshing the keys it holds
// - No eviction: entries leave only by TTL expiry or an explicit clear
// - Redis and in-memory stores
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create the admission cache over a Redis store
//	c, err := cache.New(cache.NewRedisStore(redisClient, ""), cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	// Wrap the application
//	http.Handle("/", c.Middleware(app))
//
// # Capacity
//
//	// Raise the limit; raw operator input is parsed and validated
//	if err := c.SetMaxSize(ctx, "50"); err != nil {
//		var tooSmall *cache.CapacityTooSmallError
//		if errors.As(err, &tooSmall) {
//			// clear entries first
//		}
//	}
//
// Shrinking below the current number of entries is rejected rather than
// truncated; clear entries first.
//
// # Clearing
//
//	c.Clear(ctx, "")                    // everything
//	c.Clear(ctx, "/search?a=1&b=2")     // one key
//	c.ClearMatching(ctx, "/users/**")   // glob pattern
//
// # Response headers
//
// Every gated response carries X-Cache: HIT, MISS or BYPASS. Hits answer
// conditional requests (If-None-Match, If-Modified-Since) with 304.
//
// # Metrics
//
//   - apicache_hits_total - Responses served from cache
//   - apicache_misses_total - Delegated requests that ran the application
//   - apicache_bypasses_total - Requests refused admission by a full cache
//   - apicache_admission_rejects_total - Captures not stored because the cache filled meanwhile
//   - apicache_coalesced_requests_total - Misses served from a shared capture
//   - apicache_304_responses_total - Conditional request successes
//   - apicache_entries - Occupancy at the last admission decision
//   - apicache_capacity - Current capacity limit
//   - apicache_errors_total{operation} - Store operation errors
package cache
