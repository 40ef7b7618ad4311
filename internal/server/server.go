// Package server implements the HTTP transport layer of apicache.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/apicache/pkg/api"
	"github.com/Sternrassler/apicache/pkg/cache"
	"github.com/Sternrassler/apicache/pkg/logging"
	"github.com/Sternrassler/apicache/pkg/metrics"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Cache      *cache.AdmissionCache // required
	App        http.Handler          // application served behind the cache (required)
	ReadyCheck ReadyChecker          // nil = always ready (for tests)
	Logger     *zerolog.Logger       // nil = component logger from pkg/logging
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	logger := logging.NewLogger("server")
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	s := &server{deps: deps, logger: logger}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	r.Use(s.metrics)

	// System endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	// Administrative surface
	r.Get(api.PathStats, s.handleStats)
	r.Get(api.PathMaxSize, s.handleGetMaxSize)
	r.Put(api.PathMaxSize, s.handleSetMaxSize)
	r.Delete(api.PathClearAll, s.handleClearAll)
	r.Delete(api.PathEntries, s.handleClearEntries)

	// Everything else is the application, behind the admission cache
	r.Handle("/*", deps.Cache.Middleware(deps.App))

	return r
}

type server struct {
	deps   Deps
	logger zerolog.Logger
}
