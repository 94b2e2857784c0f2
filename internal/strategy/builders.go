package strategy

import (
	"context"
	"strings"

	"github.com/radiolib/libraryd/internal/library"
	"github.com/radiolib/libraryd/internal/metadata"
	"github.com/radiolib/libraryd/internal/models"
	"github.com/radiolib/libraryd/internal/normalize"
)

// compilationFuzzyThreshold is the minimum score for a track-on-
// compilation tracklist scan match.
const compilationFuzzyThreshold = 80

// Build assembles the four strategies in declaration order, closing over
// store and meta so each Execute function has what it needs.
func Build(store *library.Store, meta *metadata.Service) []Strategy {
	return []Strategy{
		{
			Name:                models.StrategyArtistPlusAlbum,
			Condition:           artistPlusAlbumCondition,
			Execute:             artistPlusAlbumExecute(store),
			UpdatesSongNotFound: true,
		},
		{
			Name:      models.StrategySwappedInterp,
			Condition: swappedInterpretationCondition,
			Execute:   swappedInterpretationExecute(store),
		},
		{
			Name:                  models.StrategyTrackOnCompilation,
			Condition:             trackOnCompilationCondition,
			Execute:               trackOnCompilationExecute(store, meta),
			UpdatesExternalTitles: true,
		},
		{
			Name:      models.StrategySongAsArtist,
			Condition: songAsArtistCondition,
			Execute:   songAsArtistExecute(store),
		},
	}
}

func artistPlusAlbumCondition(_ *State, req *Request) bool {
	return req.HasArtist || req.HasAlbum || req.HasSong
}

// artistPlusAlbumExecute tries each resolved album (or the request's own
// album), falls back to the song title, then to artist-only (which sets
// song_not_found).
func artistPlusAlbumExecute(store *library.Store) Execute {
	return func(ctx context.Context, state *State, req *Request) error {
		albums := state.ResolvedAlbums
		if len(albums) == 0 && req.HasAlbum {
			albums = []string{req.Album}
		}

		for _, album := range albums {
			items, err := store.Search(ctx, album, library.Options{
				FallbackToLike: true, FallbackToFuzzy: true, Limit: 10, ArtistFilter: req.Artist,
			})
			if err != nil {
				return err
			}
			if len(items) > 0 {
				state.Results = items
				state.SearchType = models.SearchTypeDirect
				return nil
			}
		}

		if req.HasSong {
			items, err := store.Search(ctx, req.Song, library.Options{
				FallbackToLike: true, FallbackToFuzzy: true, Limit: 10, ArtistFilter: req.Artist,
			})
			if err != nil {
				return err
			}
			if len(items) > 0 {
				state.Results = items
				state.SearchType = models.SearchTypeDirect
				return nil
			}
		}

		if req.HasArtist {
			items, err := store.Search(ctx, req.Artist, library.Options{
				FallbackToLike: true, FallbackToFuzzy: true, Limit: 10,
			})
			if err != nil {
				return err
			}
			state.SongNotFound = true
			if len(items) > 0 {
				state.Results = items
				state.SearchType = models.SearchTypeDirect
			}
		}

		return nil
	}
}

func swappedInterpretationCondition(state *State, req *Request) bool {
	if len(state.Results) > 0 {
		return false
	}
	_, _, ok := normalize.DetectAmbiguousFormat(req.RawMessage)
	return ok
}

// swappedInterpretationExecute tries (part1 as artist, part2 as title)
// then the reverse, keeping whichever ordering is non-empty.
func swappedInterpretationExecute(store *library.Store) Execute {
	return func(ctx context.Context, state *State, req *Request) error {
		part1, part2, ok := normalize.DetectAmbiguousFormat(req.RawMessage)
		if !ok {
			return nil
		}

		items, err := store.Search(ctx, part2, library.Options{
			FallbackToLike: true, FallbackToFuzzy: true, Limit: 10, ArtistFilter: part1,
		})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			items, err = store.Search(ctx, part1, library.Options{
				FallbackToLike: true, FallbackToFuzzy: true, Limit: 10, ArtistFilter: part2,
			})
			if err != nil {
				return err
			}
		}
		if len(items) > 0 {
			state.Results = items
			state.SongNotFound = false
			state.SearchType = models.SearchTypeSwapped
		}
		return nil
	}
}

func trackOnCompilationCondition(state *State, req *Request) bool {
	return req.HasArtist && req.HasSong && (len(state.Results) == 0 || state.SongNotFound)
}

// trackOnCompilationExecute finds releases containing req.Song, keeps
// those that look like compilations (an artist credit containing
// "various", case-insensitively, or a tracklist entry fuzzy-matching
// req.Song at >= 80), then searches the library by the release's own
// title.
func trackOnCompilationExecute(store *library.Store, meta *metadata.Service) Execute {
	return func(ctx context.Context, state *State, req *Request) error {
		releases, err := meta.SearchReleasesByTrack(ctx, req.Artist, req.Song, 10, req.SkipCache)
		if err != nil {
			return nil // upstream failure never fails the request
		}

		for _, release := range releases {
			if !isCompilation(ctx, meta, release, req.Song, req.SkipCache) {
				continue
			}

			items, err := store.Search(ctx, release.Album, library.Options{
				FallbackToLike: true, FallbackToFuzzy: true, Limit: 10,
			})
			if err != nil || len(items) == 0 {
				continue
			}

			state.Results = items
			state.SongNotFound = false
			state.FoundOnCompilation = true
			state.SearchType = models.SearchTypeCompilation
			for _, item := range items {
				state.ExternalTitles[item.ID] = release.Album
			}
			return nil
		}
		return nil
	}
}

func isCompilation(ctx context.Context, meta *metadata.Service, release models.ReleaseSummary, song string, skipCache bool) bool {
	lower := strings.ToLower(release.Artist)
	if strings.Contains(lower, "various") {
		return true
	}
	ok, err := meta.ValidateTrackOnRelease(ctx, release.ReleaseID, song, skipCache)
	return err == nil && ok
}

func songAsArtistCondition(state *State, req *Request) bool {
	return len(state.Results) == 0 && req.HasSong && !req.HasArtist
}

func songAsArtistExecute(store *library.Store) Execute {
	return func(ctx context.Context, state *State, req *Request) error {
		items, err := store.Search(ctx, req.Song, library.Options{
			FallbackToLike: true, FallbackToFuzzy: true, Limit: 10,
		})
		if err != nil {
			return err
		}
		if len(items) > 0 {
			state.Results = items
			state.SearchType = models.SearchTypeSongAsArtist
		}
		return nil
	}
}
