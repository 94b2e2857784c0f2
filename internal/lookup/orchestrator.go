// Package lookup implements the six-step lookup orchestrator: artist
// correction, album resolution, strategy pipeline, track validation,
// artwork fetch, context message.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/radiolib/libraryd/internal/errs"
	"github.com/radiolib/libraryd/internal/fuzzy"
	"github.com/radiolib/libraryd/internal/library"
	"github.com/radiolib/libraryd/internal/metadata"
	"github.com/radiolib/libraryd/internal/models"
	"github.com/radiolib/libraryd/internal/normalize"
	"github.com/radiolib/libraryd/internal/strategy"
	"github.com/radiolib/libraryd/internal/telemetry"
)

// trackFuzzyThreshold is the minimum score for a tracklist scan match.
const trackFuzzyThreshold = 80

// maxResults bounds the response's result list.
const maxResults = 10

// Orchestrator wires the library store, metadata façade, and strategy
// pipeline into the six-step request flow.
type Orchestrator struct {
	store       *library.Store
	meta        *metadata.Service
	strategies  []strategy.Strategy
	concurrency int
}

// New builds an orchestrator with the given concurrency bound for the
// track-validation and artwork-fetch fan-outs, sharing the same bound as
// the upstream client's concurrency gate.
func New(store *library.Store, meta *metadata.Service, concurrency int) *Orchestrator {
	return &Orchestrator{
		store:       store,
		meta:        meta,
		strategies:  strategy.Build(store, meta),
		concurrency: concurrency,
	}
}

// Lookup runs the full pipeline for req.
func (o *Orchestrator) Lookup(ctx context.Context, req *models.LookupRequest) (*models.LookupResponse, error) {
	defer telemetry.StepTimer(ctx, "lookup_total")()

	if !req.Valid() {
		return nil, fmt.Errorf("%w: at least one of artist, song, album is required", errs.ErrInvalidInput)
	}

	workingArtist := req.ArtistOr("")
	workingSong := req.SongOr("")
	workingAlbum := req.AlbumOr("")

	correctedArtist, err := o.correctArtist(ctx, req)
	if err != nil {
		return nil, err
	}
	if correctedArtist != "" {
		workingArtist = correctedArtist
	}

	resolvedAlbums, songNotFoundFromResolution := o.resolveAlbums(ctx, workingArtist, workingSong, workingAlbum, req.SkipCache)

	sreq := &strategy.Request{
		Artist:     workingArtist,
		Song:       workingSong,
		Album:      workingAlbum,
		HasArtist:  workingArtist != "",
		HasSong:    workingSong != "",
		HasAlbum:   workingAlbum != "",
		RawMessage: req.RawMessage,
		SkipCache:  req.SkipCache,
	}
	state := strategy.NewState(resolvedAlbums)
	state.SongNotFound = songNotFoundFromResolution

	if pipelineErr := func() error {
		defer telemetry.StepTimer(ctx, "strategy_pipeline")()
		return strategy.Run(ctx, o.strategies, state, sreq)
	}(); pipelineErr != nil {
		if errors.Is(pipelineErr, errs.ErrStoreUnavailable) {
			return nil, pipelineErr
		}
		telemetry.ForRequest(ctx).Warn("strategy pipeline error", "err", pipelineErr)
	}

	if len(state.Results) > 0 {
		telemetry.StrategySuccessTotal.WithLabelValues(string(lastStrategy(state))).Inc()
	}

	if state.SongNotFound && workingSong != "" {
		if validated := o.validateTracks(ctx, state, workingArtist, workingSong, req.SkipCache); len(validated) > 0 {
			state.Results = validated
			state.SongNotFound = false
		}
		// No candidate survived validation: keep the original
		// artist-only-fallback guess and leave song_not_found set,
		// rather than discarding it to an empty result set.
	}

	if len(state.Results) > maxResults {
		state.Results = state.Results[:maxResults]
	}

	artworks := o.fetchArtwork(ctx, state, workingArtist, req.SkipCache)

	results := make([]models.LookupResultItem, len(state.Results))
	for i, item := range state.Results {
		results[i] = models.LookupResultItem{LibraryItem: item, Artwork: artworks[i]}
	}

	searchType := state.SearchType
	if len(results) == 0 {
		searchType = models.SearchTypeNone
	}

	counters := telemetry.FromContext(ctx).Snapshot()
	return &models.LookupResponse{
		Results:            results,
		SearchType:         searchType,
		SongNotFound:       state.SongNotFound,
		FoundOnCompilation: state.FoundOnCompilation,
		ContextMessage:     contextMessage(state, correctedArtist, workingArtist, workingSong),
		CorrectedArtist:    correctedArtist,
		CacheStats: &models.CacheStats{
			MemoryHits: counters.MemoryHits,
			PgHits:     counters.PgHits,
			PgMisses:   counters.PgMisses,
			APICalls:   counters.APICalls,
			PgTimeMs:   counters.PgTimeMs,
			APITimeMs:  counters.APITimeMs,
		},
	}, nil
}

// correctArtist runs step 1: substitute a fuzzy-corrected artist name
// when the catalog holds a close match under a different spelling. A
// store_unavailable failure is returned to the caller rather than
// swallowed, since it must short-circuit the whole lookup.
func (o *Orchestrator) correctArtist(ctx context.Context, req *models.LookupRequest) (string, error) {
	if !req.HasArtist() {
		return "", nil
	}
	defer telemetry.StepTimer(ctx, "artist_correction")()

	match, err := o.store.FindSimilarArtist(ctx, req.ArtistOr(""))
	if err != nil {
		if errors.Is(err, errs.ErrStoreUnavailable) {
			return "", err
		}
		return "", nil
	}
	if match == "" {
		return "", nil
	}
	if normalize.Normalize(match) == normalize.Normalize(req.ArtistOr("")) {
		return "", nil
	}
	return match, nil
}

// resolveAlbums runs step 2: when a song is given without an album,
// resolve candidate album titles from the metadata façade.
func (o *Orchestrator) resolveAlbums(ctx context.Context, artist, song, album string, skipCache bool) ([]string, bool) {
	if song == "" || album != "" {
		return nil, false
	}
	defer telemetry.StepTimer(ctx, "album_resolution")()

	releases, err := o.meta.SearchReleasesByTrack(ctx, artist, song, 10, skipCache)
	if err != nil || len(releases) == 0 {
		return nil, true
	}

	seen := make(map[string]bool)
	var albums []string
	for _, r := range releases {
		key := normalize.Normalize(r.Album)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		albums = append(albums, r.Album)
	}
	return albums, len(albums) == 0
}

// validateTracks runs step 4: bounded-fan-out tracklist validation,
// dropping items whose resolved release doesn't actually contain the
// requested song.
func (o *Orchestrator) validateTracks(ctx context.Context, state *strategy.State, artist, song string, skipCache bool) []models.LibraryItem {
	defer telemetry.StepTimer(ctx, "track_validation")()

	items := state.Results
	kept := make([]bool, len(items))

	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item models.LibraryItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			kept[i] = o.itemHasTrack(ctx, state, item, artist, song, skipCache)
		}(i, item)
	}
	wg.Wait()

	var out []models.LibraryItem
	for i, k := range kept {
		if k {
			out = append(out, items[i])
		}
	}
	return out
}

func (o *Orchestrator) itemHasTrack(ctx context.Context, state *strategy.State, item models.LibraryItem, artist, song string, skipCache bool) bool {
	releases, err := o.releasesForItem(ctx, state, item, artist, skipCache)
	if err != nil {
		return false
	}
	for _, releaseID := range releases {
		ref, err := o.meta.GetRelease(ctx, releaseID, skipCache)
		if err != nil || ref == nil {
			continue
		}
		for _, t := range ref.Tracklist {
			if fuzzy.TokenSetRatio(song, t.Title) >= trackFuzzyThreshold {
				return true
			}
		}
	}
	return false
}

// releasesForItem resolves candidate release IDs for a library item, via
// external_titles when the strategy pipeline already attached one, else
// by searching the metadata façade for (item.artist, item.title).
func (o *Orchestrator) releasesForItem(ctx context.Context, state *strategy.State, item models.LibraryItem, artist string, skipCache bool) ([]int, error) {
	title := item.Title
	if t, ok := state.ExternalTitles[item.ID]; ok {
		title = t
	}
	summaries, err := o.meta.Search(ctx, item.Artist, title, 3, skipCache)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(summaries))
	for i, s := range summaries {
		ids[i] = s.ReleaseID
	}
	return ids, nil
}

// fetchArtwork runs step 5: bounded-fan-out artwork resolution, one
// lookup per surviving item, order-preserving.
func (o *Orchestrator) fetchArtwork(ctx context.Context, state *strategy.State, artist string, skipCache bool) []*models.Artwork {
	defer telemetry.StepTimer(ctx, "artwork_fetch")()

	items := state.Results
	out := make([]*models.Artwork, len(items))

	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item models.LibraryItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out[i] = o.artworkForItem(ctx, state, item, skipCache)
		}(i, item)
	}
	wg.Wait()
	return out
}

func (o *Orchestrator) artworkForItem(ctx context.Context, state *strategy.State, item models.LibraryItem, skipCache bool) *models.Artwork {
	title := item.Title
	if t, ok := state.ExternalTitles[item.ID]; ok {
		title = t
	}
	summaries, err := o.meta.Search(ctx, item.Artist, title, 1, skipCache)
	if err != nil || len(summaries) == 0 {
		return nil
	}
	best := summaries[0]
	return &models.Artwork{
		Album:      best.Album,
		Artist:     best.Artist,
		ReleaseID:  best.ReleaseID,
		ReleaseURL: best.ReleaseURL,
		ArtworkURL: best.ArtworkURL,
		Confidence: best.Score,
		Cached:     best.Cached,
	}
}

func lastStrategy(state *strategy.State) models.StrategyName {
	if len(state.StrategiesTried) == 0 {
		return ""
	}
	return state.StrategiesTried[len(state.StrategiesTried)-1]
}

// contextMessage synthesizes step 6's human-readable outcome sentence.
func contextMessage(state *strategy.State, correctedArtist, artist, song string) string {
	switch {
	case state.FoundOnCompilation:
		return fmt.Sprintf("found on compilation %s", firstExternalTitle(state))
	case len(state.Results) == 0:
		return "no matches"
	case correctedArtist != "":
		return fmt.Sprintf("corrected artist to %s", correctedArtist)
	case state.SearchType == models.SearchTypeSwapped:
		return fmt.Sprintf("interpreted as %s by %s (swapped)", song, artist)
	default:
		return "found directly"
	}
}

func firstExternalTitle(state *strategy.State) string {
	for _, title := range state.ExternalTitles {
		return title
	}
	return ""
}
