package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks responses served from the store
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_hits_total",
			Help: "Total number of responses served from cache",
		},
	)

	// CacheMisses tracks delegated requests that had to run the application
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheBypasses tracks requests refused admission because the cache is full
	CacheBypasses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_bypasses_total",
			Help: "Total number of requests bypassing a full cache",
		},
	)

	// AdmissionRejects tracks captured responses not stored because the cache filled up meanwhile
	AdmissionRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_admission_rejects_total",
			Help: "Total number of captured responses rejected at store time",
		},
	)

	// CoalescedRequests tracks misses that shared another request's response
	CoalescedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_coalesced_requests_total",
			Help: "Total number of concurrent misses served from a shared capture",
		},
	)

	// NotModifiedResponses tracks 304 answers to conditional requests
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apicache_304_responses_total",
			Help: "Total number of 304 Not Modified responses served from cache",
		},
	)

	// CacheEntries is the occupancy observed at the last admission decision,
	// process-wide like CacheCapacity
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "apicache_entries",
			Help: "Number of entries currently in the cache",
		},
	)

	// CacheCapacity is the capacity limit most recently set by New or SetMaxSize.
	// It is process-wide: with several AdmissionCache instances it reports the
	// last one changed, and the per-instance limit is read with MaxSize.
	CacheCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "apicache_capacity",
			Help: "Configured maximum number of cache entries",
		},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_errors_total",
			Help: "Total number of cache store errors",
		},
		[]string{"operation"}, // "get", "set", "keys", "delete", "purge"
	)
)
