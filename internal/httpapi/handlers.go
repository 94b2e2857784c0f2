package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/radiolib/libraryd/internal/errs"
	"github.com/radiolib/libraryd/internal/library"
	"github.com/radiolib/libraryd/internal/models"
	"github.com/radiolib/libraryd/internal/telemetry"
)

const requestTimeout = 20 * time.Second

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req models.LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if skip, err := strconv.ParseBool(r.URL.Query().Get("skip_cache")); err == nil && skip {
		req.SkipCache = true
	}

	resp, err := s.orchestrator.Lookup(ctx, &req)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLibrarySearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context(), requestTimeout)
	defer cancel()

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter 'q'")
		return
	}
	limit := parseIntOr(r.URL.Query().Get("limit"), 10)

	items, err := s.store.Search(ctx, query, library.Options{
		FallbackToLike: true, FallbackToFuzzy: true, Limit: limit,
	})
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

type discogsSearchRequest struct {
	Artist string `json:"artist"`
	Track  string `json:"track"`
	Query  string `json:"q"`
}

// handleDiscogsSearch backs the artwork-oriented general search endpoint.
// A track-scoped body runs the two-phase track lookup; otherwise the
// free-text `q` (or bare artist) is used for the general search.
func (s *Server) handleDiscogsSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context(), requestTimeout)
	defer cancel()

	var body discogsSearchRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body.Artist == "" && body.Track == "" && body.Query == "" {
		writeError(w, http.StatusBadRequest, "at least one of artist, track, q is required")
		return
	}

	var (
		results any
		err     error
	)
	if body.Track != "" {
		results, err = s.meta.SearchReleasesByTrack(ctx, body.Artist, body.Track, 10, false)
	} else {
		query := body.Query
		if query == "" {
			query = body.Artist
		}
		results, err = s.meta.Search(ctx, body.Artist, query, 10, false)
	}
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleTrackReleases(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context(), requestTimeout)
	defer cancel()

	track := r.URL.Query().Get("track")
	if track == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter 'track'")
		return
	}
	artist := r.URL.Query().Get("artist")
	limit := parseIntOr(r.URL.Query().Get("limit"), 20)

	results, err := s.meta.SearchReleasesByTrack(ctx, artist, track, limit, false)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"track": track, "artist": artist, "releases": results, "total": len(results)})
}

func (s *Server) handleGetRelease(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid release id")
		return
	}

	release, err := s.meta.GetRelease(ctx, id, false)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	if release == nil {
		writeError(w, http.StatusNotFound, "release not found")
		return
	}
	writeJSON(w, http.StatusOK, release)
}

const healthCheckTimeout = 3 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	type result struct {
		name string
		ok   bool
	}
	ch := make(chan result, 3)
	go func() { ch <- result{"catalog", s.store.IsAvailable(ctx)} }()
	go func() { ch <- result{"release_api", s.meta.IsAvailable(ctx)} }()
	go func() { ch <- result{"persistent_cache", s.meta.PersistentAvailable(ctx)} }()

	services := make(map[string]string, 3)
	coreOK := true
	for i := 0; i < 3; i++ {
		res := <-ch
		if res.ok {
			services[res.name] = "ok"
		} else {
			services[res.name] = "error"
			if res.name == "catalog" {
				coreOK = false
			}
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !coreOK {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else if services["release_api"] != "ok" || services["persistent_cache"] != "ok" {
		status = "degraded"
	}

	writeJSON(w, statusCode, map[string]any{"status": status, "services": services})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeLookupError maps the five sentinel error kinds onto HTTP status
// codes.
func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
	case errors.Is(err, errs.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream release API error")
	case errors.Is(err, errs.ErrCacheUnavailable):
		writeError(w, http.StatusServiceUnavailable, "metadata cache unavailable")
	default:
		telemetry.Logger.Error("lookup handler error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseIntOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
