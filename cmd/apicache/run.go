package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/apicache/internal/server"
	"github.com/Sternrassler/apicache/pkg/cache"
	"github.com/Sternrassler/apicache/pkg/config"
	"github.com/Sternrassler/apicache/pkg/logging"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("main")

	logger.Info().
		Str("version", version).
		Str("addr", cfg.Addr).
		Str("upstream", cfg.UpstreamURL).
		Str("store", cfg.Store).
		Msg("Starting apicache")

	ctx := context.Background()
	store, ready, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Store unavailable")
		return err
	}
	defer closeStore()

	handler, err := buildHandler(cfg, store, ready)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info().Str("addr", cfg.Addr).Int("max_size", cfg.Cache.MaxSize).Msg("apicache ready")

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info().Msg("Shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info().Msg("apicache stopped")
	return nil
}

// openStore connects the configured backing store. The returned ReadyChecker
// reports store health for /ready; the close func releases its resources.
func openStore(ctx context.Context, cfg *config.Config) (cache.Store, server.ReadyChecker, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return cache.NewMemoryStore(cfg.Cache.MemoryTTL), nil, func() {}, nil

	case config.StoreRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := cache.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
		if err := store.Ping(ctx); err != nil {
			redisClient.Close()
			return nil, nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return store, store.Ping, func() { redisClient.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// buildHandler wires the admission cache, the upstream proxy and the server routes.
func buildHandler(cfg *config.Config, store cache.Store, ready server.ReadyChecker) (http.Handler, error) {
	admission, err := cache.New(store, cfg.AdmissionConfig())
	if err != nil {
		return nil, err
	}

	upstream, err := newUpstream(cfg)
	if err != nil {
		return nil, err
	}

	return server.New(server.Deps{
		Cache:      admission,
		App:        upstream,
		ReadyCheck: ready,
	}), nil
}

// newUpstream returns a reverse proxy to the application behind the cache.
// Upstream failures are answered with 502 and never stored.
func newUpstream(cfg *config.Config) (http.Handler, error) {
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream URL: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("upstream URL must be http or https (got %q)", cfg.UpstreamURL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Server.UpstreamTimeout

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.FromContext(r.Context()).Error().
				Err(err).
				Str("upstream", cfg.UpstreamURL).
				Str("path", r.URL.Path).
				Msg("Upstream request failed")
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}, nil
}
