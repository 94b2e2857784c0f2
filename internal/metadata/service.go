// Package metadata is the façade over the external-release metadata
// pipeline: it composes the memory, persistent, and HTTP tiers
// (M -> P -> H) for every external-release operation, writing deeper-tier
// hits back to shallower tiers.
package metadata

import (
	"context"
	"strconv"
	"time"

	"github.com/radiolib/libraryd/internal/errs"
	"github.com/radiolib/libraryd/internal/fuzzy"
	"github.com/radiolib/libraryd/internal/memcache"
	"github.com/radiolib/libraryd/internal/metacache"
	"github.com/radiolib/libraryd/internal/models"
	"github.com/radiolib/libraryd/internal/releaseapi"
	"github.com/radiolib/libraryd/internal/telemetry"
)

// minConfidence is the floor applied to every confidence score, so a
// borderline match still surfaces for the downstream to weigh.
const minConfidence = 0.2

// trackFuzzyThreshold is the minimum fuzzy match for validating a track
// against a release's tracklist.
const trackFuzzyThreshold = 80

// Service is the metadata façade. persistent may be nil (unconfigured
// cache tier); upstream is required.
type Service struct {
	trackCache   *memcache.Tier[any]
	releaseCache *memcache.Tier[any]
	searchCache  *memcache.Tier[any]
	persistent   *metacache.Store
	upstream     *releaseapi.Client
}

// New builds the façade over its three tiers.
func New(trackCache, releaseCache, searchCache *memcache.Tier[any], persistent *metacache.Store, upstream *releaseapi.Client) *Service {
	return &Service{
		trackCache:   trackCache,
		releaseCache: releaseCache,
		searchCache:  searchCache,
		persistent:   persistent,
		upstream:     upstream,
	}
}

// IsAvailable reports whether the upstream HTTP tier can be reached
// (used by the health endpoint; the memory tier is always up, the
// persistent tier degrades to miss-only rather than unavailable).
func (s *Service) IsAvailable(ctx context.Context) bool {
	return s.upstream.IsAvailable(ctx)
}

// PersistentAvailable reports whether the persistent metadata cache tier
// can be reached. An unconfigured tier (persistent == nil) reports
// available, since its absence is a valid deployment choice rather than
// an outage (§6: "absent -> tier disabled").
func (s *Service) PersistentAvailable(ctx context.Context) bool {
	if s.persistent == nil {
		return true
	}
	return s.persistent.IsAvailable(ctx)
}

// SearchReleasesByTrack resolves releases containing track, optionally
// filtered by artist.
func (s *Service) SearchReleasesByTrack(ctx context.Context, artist, track string, limit int, skipCache bool) ([]models.ReleaseSummary, error) {
	counters := telemetry.FromContext(ctx)

	if cached, ok := s.trackCache.Get(counters, skipCache, "search_releases_by_track", artist, track); ok {
		return scoreConfidence(markCached(cached.([]models.ReleaseSummary)), artist, track), nil
	}

	if s.persistent != nil && !skipCache {
		start := time.Now()
		results, err := s.persistent.SearchReleasesByTrack(ctx, track, artist, limit)
		counters.AddPgTime(time.Since(start))
		if err == nil && len(results) > 0 {
			counters.IncPgHit()
			telemetry.PgCacheHitsTotal.Inc()
			s.trackCache.Set(skipCache, results, "search_releases_by_track", artist, track)
			return scoreConfidence(markCached(results), artist, track), nil
		}
		counters.IncPgMiss()
		telemetry.PgCacheMissesTotal.Inc()
	}

	results, err := s.upstream.SearchByTrack(ctx, track, artist, limit)
	if err != nil {
		return nil, err
	}

	s.trackCache.Set(skipCache, results, "search_releases_by_track", artist, track)

	return scoreConfidence(results, artist, track), nil
}

// GetRelease resolves a single release by ID. skipCache bypasses both
// the memory and persistent tiers' reads and writes, per spec §4.4.
func (s *Service) GetRelease(ctx context.Context, releaseID int, skipCache bool) (*models.ExternalReleaseRef, error) {
	counters := telemetry.FromContext(ctx)
	idStr := strconv.Itoa(releaseID)

	if cached, ok := s.releaseCache.Get(counters, skipCache, "get_release", idStr); ok {
		ref := cached.(*models.ExternalReleaseRef)
		ref.Cached = true
		return ref, nil
	}

	if s.persistent != nil && !skipCache {
		start := time.Now()
		ref, err := s.persistent.GetRelease(ctx, releaseID)
		counters.AddPgTime(time.Since(start))
		if err == nil && ref != nil {
			counters.IncPgHit()
			telemetry.PgCacheHitsTotal.Inc()
			s.releaseCache.Set(skipCache, ref, "get_release", idStr)
			return ref, nil
		}
		counters.IncPgMiss()
		telemetry.PgCacheMissesTotal.Inc()
	}

	ref, err := s.upstream.GetRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	s.releaseCache.Set(skipCache, ref, "get_release", idStr)
	if s.persistent != nil && !skipCache {
		_ = s.persistent.WriteRelease(ctx, ref)
	}
	return ref, nil
}

// Search resolves artwork-oriented candidates for (artist, album).
func (s *Service) Search(ctx context.Context, artist, album string, limit int, skipCache bool) ([]models.ReleaseSummary, error) {
	counters := telemetry.FromContext(ctx)

	if cached, ok := s.searchCache.Get(counters, skipCache, "search", artist, album); ok {
		return scoreConfidence(markCached(cached.([]models.ReleaseSummary)), artist, album), nil
	}

	if s.persistent != nil && !skipCache {
		start := time.Now()
		results, err := s.persistent.SearchReleases(ctx, artist, album, limit)
		counters.AddPgTime(time.Since(start))
		if err == nil && len(results) > 0 {
			counters.IncPgHit()
			telemetry.PgCacheHitsTotal.Inc()
			s.searchCache.Set(skipCache, results, "search", artist, album)
			return scoreConfidence(markCached(results), artist, album), nil
		}
		counters.IncPgMiss()
		telemetry.PgCacheMissesTotal.Inc()
	}

	results, err := s.upstream.Search(ctx, artist, album, limit)
	if err != nil {
		return nil, err
	}

	s.searchCache.Set(skipCache, results, "search", artist, album)
	return scoreConfidence(results, artist, album), nil
}

// ValidateTrackOnRelease reports whether release's tracklist contains a
// track whose normalized title fuzzy-matches track at >= 80.
func (s *Service) ValidateTrackOnRelease(ctx context.Context, releaseID int, track string, skipCache bool) (bool, error) {
	ref, err := s.GetRelease(ctx, releaseID, skipCache)
	if err != nil {
		return false, err
	}
	if ref == nil {
		return false, errs.ErrUpstream
	}
	for _, t := range ref.Tracklist {
		if fuzzy.TokenSetRatio(track, t.Title) >= trackFuzzyThreshold {
			return true, nil
		}
	}
	return false, nil
}

// markCached flags every result as served from a cache tier rather than
// the HTTP tier, so downstream consumers (e.g. Artwork.Cached) can tell
// the two apart.
func markCached(results []models.ReleaseSummary) []models.ReleaseSummary {
	for i := range results {
		results[i].Cached = true
	}
	return results
}

// scoreConfidence assigns each result's Score field a weighted-average
// confidence: 0.6 * title similarity + 0.4 * artist similarity, floored
// at minConfidence.
func scoreConfidence(results []models.ReleaseSummary, artist, title string) []models.ReleaseSummary {
	for i := range results {
		titleSim := float64(fuzzy.TokenSetRatio(title, results[i].Album)) / 100
		artistSim := float64(fuzzy.TokenSetRatio(artist, results[i].Artist)) / 100
		score := 0.6*titleSim + 0.4*artistSim
		if score < minConfidence {
			score = minConfidence
		}
		results[i].Score = score
	}
	return results
}
