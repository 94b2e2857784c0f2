package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"RELEASE_API_TOKEN", "PERSISTENT_CACHE_DSN", "CATALOG_PATH", "LOG_LEVEL",
		"ADMIN_TOKEN", "PORT", "TRACK_CACHE_TTL", "RELEASE_CACHE_TTL", "SEARCH_CACHE_TTL",
		"TRACK_CACHE_SIZE", "RELEASE_CACHE_SIZE", "SEARCH_CACHE_SIZE",
		"RATE_LIMIT_PER_MINUTE", "MAX_CONCURRENT", "MAX_RETRIES", "LIBRARYD_CONFIG_FILE",
	}
	for _, v := range vars {
		old, had := os.LookupEnv(v)
		os.Unsetenv(v)
		if had {
			t.Cleanup(func(v, old string) func() {
				return func() { os.Setenv(v, old) }
			}(v, old))
		}
	}
}

func TestLoadFailsFastWithoutUpstreamToken(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail without RELEASE_API_TOKEN set")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("RELEASE_API_TOKEN", "test-token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defaults := Defaults()
	if cfg.CatalogPath != defaults.CatalogPath {
		t.Errorf("CatalogPath = %q, want default %q", cfg.CatalogPath, defaults.CatalogPath)
	}
	if cfg.Port != defaults.Port {
		t.Errorf("Port = %q, want default %q", cfg.Port, defaults.Port)
	}
	if cfg.UpstreamToken != "test-token" {
		t.Errorf("UpstreamToken = %q, want test-token", cfg.UpstreamToken)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("RELEASE_API_TOKEN", "tok")
	os.Setenv("PORT", "9090")
	os.Setenv("TRACK_CACHE_TTL", "10m")
	os.Setenv("MAX_CONCURRENT", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.TrackCacheTTL != 10*time.Minute {
		t.Errorf("TrackCacheTTL = %v, want 10m", cfg.TrackCacheTTL)
	}
	if cfg.MaxConcurrent != 9 {
		t.Errorf("MaxConcurrent = %d, want 9", cfg.MaxConcurrent)
	}
}

func TestLoadIgnoresInvalidNumericOverride(t *testing.T) {
	clearEnv(t)
	os.Setenv("RELEASE_API_TOKEN", "tok")
	os.Setenv("MAX_RETRIES", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRetries != Defaults().MaxRetries {
		t.Errorf("MaxRetries = %d, want default %d after an invalid override", cfg.MaxRetries, Defaults().MaxRetries)
	}
}

func TestLoadReadsYAMLOverlay(t *testing.T) {
	clearEnv(t)
	os.Setenv("RELEASE_API_TOKEN", "tok")

	path := t.TempDir() + "/config.yaml"
	if err := os.WriteFile(path, []byte("port: \"7070\"\nlog_level: debug\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	os.Setenv("LIBRARYD_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %q, want 7070 from YAML overlay", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug from YAML overlay", cfg.LogLevel)
	}
}

func TestLoadEnvOverridesYAMLOverlay(t *testing.T) {
	clearEnv(t)
	os.Setenv("RELEASE_API_TOKEN", "tok")

	path := t.TempDir() + "/config.yaml"
	if err := os.WriteFile(path, []byte("port: \"7070\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	os.Setenv("LIBRARYD_CONFIG_FILE", path)
	os.Setenv("PORT", "6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "6060" {
		t.Errorf("Port = %q, want env override 6060", cfg.Port)
	}
}
