// Package httpapi is the inbound HTTP surface: routing, request
// deserialization, and the handlers for lookup, library/discogs search,
// health, and catalog admin reload. It stays a thin adapter over
// internal/lookup, internal/library, and internal/metadata, routing with
// go-chi/chi and a hand-rolled panic-recovery middleware.
package httpapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/radiolib/libraryd/internal/library"
	"github.com/radiolib/libraryd/internal/lookup"
	"github.com/radiolib/libraryd/internal/metadata"
	"github.com/radiolib/libraryd/internal/telemetry"
)

// Server bundles the dependencies every handler needs.
type Server struct {
	orchestrator *lookup.Orchestrator
	store        *library.Store
	meta         *metadata.Service
	adminToken   string
	catalogPath  string
}

// New builds the chi router with every route wired.
func New(orchestrator *lookup.Orchestrator, store *library.Store, meta *metadata.Service, adminToken, catalogPath string) http.Handler {
	s := &Server{orchestrator: orchestrator, store: store, meta: meta, adminToken: adminToken, catalogPath: catalogPath}

	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(requestIDMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/lookup", s.handleLookup)
		r.Get("/library/search", s.handleLibrarySearch)
		r.Post("/discogs/search", s.handleDiscogsSearch)
		r.Get("/discogs/track-releases", s.handleTrackReleases)
		r.Get("/discogs/release/{id}", s.handleGetRelease)
		r.Post("/admin/catalog", s.handleAdminCatalogReload)
	})

	return r
}

// recoveryMiddleware recovers a panicking handler, logs it, and returns a
// 500 instead of crashing the process.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				telemetry.Logger.Error("panic recovered", "err", err, "stack", string(debug.Stack()))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware assigns a per-request UUID and attaches telemetry
// counters, so every downstream call shares one context.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := telemetry.WithRequestID(r.Context(), id)
		ctx = telemetry.WithCounters(ctx)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withTimeout bounds a handler's total work, guarding against a wedged
// upstream dependency.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
