// Package config loads the apicache process configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file with ${VAR} expansion, then APICACHE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/Sternrassler/apicache/pkg/cache"
)

// Store kinds.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config is the top-level process configuration.
type Config struct {
	// Addr is the listen address of the HTTP server
	Addr string `yaml:"addr"`

	// UpstreamURL is the application the cache sits in front of
	UpstreamURL string `yaml:"upstream_url"`

	// Store selects the backing store: "redis" or "memory"
	Store string `yaml:"store"`

	Redis  RedisConfig  `yaml:"redis"`
	Cache  CacheConfig  `yaml:"cache"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// CacheConfig holds admission cache settings.
type CacheConfig struct {
	MaxSize     int           `yaml:"max_size"`
	DefaultTTL  time.Duration `yaml:"default_ttl"`
	MaxBodySize int64         `yaml:"max_body_size"`
	MemoryTTL   time.Duration `yaml:"memory_ttl"` // lifetime ceiling for the memory store
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig holds HTTP server timeouts.
type ServerConfig struct {
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Addr:        ":8080",
		UpstreamURL: "http://localhost:3000",
		Store:       StoreRedis,
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: cache.DefaultKeyPrefix,
		},
		Cache: CacheConfig{
			MaxSize:     cache.DefaultMaxSize,
			DefaultTTL:  cache.DefaultTTL,
			MaxBodySize: cache.DefaultMaxBodySize,
			MemoryTTL:   cache.DefaultMemoryTTL,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			UpstreamTimeout: 30 * time.Second,
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment overrides apply. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from APICACHE_* variables.
func (c *Config) applyEnv() error {
	c.Addr = getEnv("APICACHE_ADDR", c.Addr)
	c.UpstreamURL = getEnv("APICACHE_UPSTREAM_URL", c.UpstreamURL)
	c.Store = getEnv("APICACHE_STORE", c.Store)
	c.Redis.Addr = getEnv("APICACHE_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("APICACHE_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.KeyPrefix = getEnv("APICACHE_REDIS_KEY_PREFIX", c.Redis.KeyPrefix)
	c.Log.Level = getEnv("APICACHE_LOG_LEVEL", c.Log.Level)

	var err error
	if c.Redis.DB, err = getEnvInt("APICACHE_REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.Cache.MaxSize, err = getEnvInt("APICACHE_MAX_SIZE", c.Cache.MaxSize); err != nil {
		return err
	}
	if c.Cache.DefaultTTL, err = getEnvDuration("APICACHE_DEFAULT_TTL", c.Cache.DefaultTTL); err != nil {
		return err
	}
	if raw := os.Getenv("APICACHE_LOG_PRETTY"); raw != "" {
		pretty, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("APICACHE_LOG_PRETTY: %w", err)
		}
		c.Log.Pretty = pretty
	}
	return nil
}

// Validate checks the configuration for values the process cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.UpstreamURL == "" {
		errs = append(errs, errors.New("upstream_url is required"))
	}
	switch c.Store {
	case StoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want %q or %q)", c.Store, StoreRedis, StoreMemory))
	}
	if c.Cache.MaxSize < 1 {
		errs = append(errs, fmt.Errorf("cache.max_size must be >= 1 (got %d)", c.Cache.MaxSize))
	}
	if c.Cache.DefaultTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.default_ttl must be positive (got %s)", c.Cache.DefaultTTL))
	}
	if c.Cache.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("cache.max_body_size must be positive (got %d)", c.Cache.MaxBodySize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// AdmissionConfig converts the cache section into the admission cache configuration.
func (c *Config) AdmissionConfig() cache.Config {
	return cache.Config{
		MaxSize:     c.Cache.MaxSize,
		DefaultTTL:  c.Cache.DefaultTTL,
		MaxBodySize: c.Cache.MaxBodySize,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}
