// Package config loads process configuration from the environment, with a
// fail-fast os.Getenv bootstrap, an optional .env file via godotenv, plus
// an optional YAML overlay for operators who'd rather not export a wall
// of environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable the service needs at boot.
type Config struct {
	// UpstreamToken authenticates against the external release API. Required.
	UpstreamToken string `yaml:"upstream_token"`
	// PersistentCacheDSN is the sqlite DSN for the persistent metadata
	// cache. Empty disables that tier; an unconfigured persistent cache
	// degrades to a permanent miss rather than failing a request.
	PersistentCacheDSN string `yaml:"persistent_cache_dsn"`
	// CatalogPath is the sqlite file backing the library store.
	CatalogPath string `yaml:"catalog_path"`

	TrackCacheTTL   time.Duration `yaml:"track_cache_ttl"`
	TrackCacheSize  int           `yaml:"track_cache_size"`
	ReleaseCacheTTL time.Duration `yaml:"release_cache_ttl"`
	ReleaseCacheSize int          `yaml:"release_cache_size"`
	SearchCacheTTL  time.Duration `yaml:"search_cache_ttl"`
	SearchCacheSize int           `yaml:"search_cache_size"`

	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	MaxConcurrent      int `yaml:"max_concurrent"`
	MaxRetries         int `yaml:"max_retries"`

	LogLevel   string `yaml:"log_level"`
	AdminToken string `yaml:"admin_token"`

	Port string `yaml:"port"`
}

// Defaults returns the service's built-in configuration defaults.
func Defaults() Config {
	return Config{
		CatalogPath:        "library.db",
		TrackCacheTTL:      time.Hour,
		TrackCacheSize:     1000,
		ReleaseCacheTTL:    4 * time.Hour,
		ReleaseCacheSize:   500,
		SearchCacheTTL:     time.Hour,
		SearchCacheSize:    1000,
		RateLimitPerMinute: 50,
		MaxConcurrent:      5,
		MaxRetries:         2,
		LogLevel:           "info",
		Port:               "8080",
	}
}

// Load reads a .env file if present via godotenv (ignored if absent), an
// optional YAML overlay named by
// LIBRARYD_CONFIG_FILE, then environment variables — in that order, with
// later sources overriding earlier ones. It fails fast if the required
// upstream token is still unset afterward.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("LIBRARYD_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.UpstreamToken == "" {
		return Config{}, fmt.Errorf("CRITICAL: RELEASE_API_TOKEN must be set")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RELEASE_API_TOKEN"); v != "" {
		cfg.UpstreamToken = v
	}
	if v := os.Getenv("PERSISTENT_CACHE_DSN"); v != "" {
		cfg.PersistentCacheDSN = v
	}
	if v := os.Getenv("CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}

	setDuration(os.Getenv("TRACK_CACHE_TTL"), &cfg.TrackCacheTTL)
	setDuration(os.Getenv("RELEASE_CACHE_TTL"), &cfg.ReleaseCacheTTL)
	setDuration(os.Getenv("SEARCH_CACHE_TTL"), &cfg.SearchCacheTTL)

	setInt(os.Getenv("TRACK_CACHE_SIZE"), &cfg.TrackCacheSize)
	setInt(os.Getenv("RELEASE_CACHE_SIZE"), &cfg.ReleaseCacheSize)
	setInt(os.Getenv("SEARCH_CACHE_SIZE"), &cfg.SearchCacheSize)
	setInt(os.Getenv("RATE_LIMIT_PER_MINUTE"), &cfg.RateLimitPerMinute)
	setInt(os.Getenv("MAX_CONCURRENT"), &cfg.MaxConcurrent)
	setInt(os.Getenv("MAX_RETRIES"), &cfg.MaxRetries)
}

func setDuration(raw string, dst *time.Duration) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

func setInt(raw string, dst *int) {
	if raw == "" {
		return
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*dst = n
	}
}
