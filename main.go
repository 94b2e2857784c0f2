// Command libraryd runs the library lookup service: it wires the
// catalog store, the three metadata cache tiers, the rate-limited
// upstream client, the strategy-driven lookup orchestrator, and the
// HTTP surface, then serves. All composition happens in one flat main().
package main

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/radiolib/libraryd/internal/config"
	"github.com/radiolib/libraryd/internal/httpapi"
	"github.com/radiolib/libraryd/internal/library"
	"github.com/radiolib/libraryd/internal/lookup"
	"github.com/radiolib/libraryd/internal/memcache"
	"github.com/radiolib/libraryd/internal/metacache"
	"github.com/radiolib/libraryd/internal/metadata"
	"github.com/radiolib/libraryd/internal/releaseapi"
	"github.com/radiolib/libraryd/internal/telemetry"
)

const releaseAPIBaseURL = "https://releases.example/api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		telemetry.Logger.Fatal(err)
	}
	telemetry.SetLevel(cfg.LogLevel)

	store, err := library.Open(cfg.CatalogPath)
	if err != nil {
		telemetry.Logger.Fatal("failed to open catalog", "err", err)
	}
	defer store.Close()

	var persistent *metacache.Store
	if cfg.PersistentCacheDSN != "" {
		persistent, err = metacache.Open(cfg.PersistentCacheDSN)
		if err != nil {
			telemetry.Logger.Error("persistent metadata cache unavailable, continuing without it", "err", err)
			persistent = nil
		} else {
			defer persistent.Close()
		}
	}

	trackCache := memcache.NewTrackCache(cfg.TrackCacheSize, cfg.TrackCacheTTL)
	releaseCache := memcache.NewReleaseCache(cfg.ReleaseCacheSize, cfg.ReleaseCacheTTL)
	searchCache := memcache.NewSearchCache(cfg.SearchCacheSize, cfg.SearchCacheTTL)

	upstream := releaseapi.New(releaseAPIBaseURL, cfg.UpstreamToken, cfg.RateLimitPerMinute, cfg.MaxConcurrent)
	meta := metadata.New(trackCache, releaseCache, searchCache, persistent, upstream)

	orchestrator := lookup.New(store, meta, cfg.MaxConcurrent)

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.New(orchestrator, store, meta, cfg.AdminToken, cfg.CatalogPath))
	mux.Handle("/metrics", promhttp.Handler())

	telemetry.Logger.Info("libraryd listening", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		telemetry.Logger.Fatal(err)
		os.Exit(1)
	}
}
