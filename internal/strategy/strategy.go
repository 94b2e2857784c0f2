// Package strategy implements a declarative search-strategy pipeline: an
// ordered list of condition/execute pairs run against a shared
// accumulator.
package strategy

import (
	"context"

	"github.com/radiolib/libraryd/internal/models"
)

// State is the shared accumulator threaded through the strategy pipeline.
type State struct {
	Results           []models.LibraryItem
	SongNotFound      bool
	FoundOnCompilation bool
	StrategiesTried   []models.StrategyName
	ExternalTitles    map[int64]string
	ResolvedAlbums    []string
	SearchType        models.SearchType
}

// NewState builds an empty accumulator seeded with resolvedAlbums from
// the orchestrator's album-resolution step.
func NewState(resolvedAlbums []string) *State {
	return &State{
		ExternalTitles: make(map[int64]string),
		ResolvedAlbums: resolvedAlbums,
		SearchType:     models.SearchTypeNone,
	}
}

// Request is the minimal read-only view a strategy's condition and
// execute functions need.
type Request struct {
	Artist     string
	Song       string
	Album      string
	HasArtist  bool
	HasSong    bool
	HasAlbum   bool
	RawMessage string
	SkipCache  bool
}

// Condition is pure — no I/O, no context.
type Condition func(state *State, req *Request) bool

// Execute may perform I/O and mutates state in place.
type Execute func(ctx context.Context, state *State, req *Request) error

// Strategy is one entry of the pipeline.
type Strategy struct {
	Name                  models.StrategyName
	Condition             Condition
	Execute               Execute
	UpdatesSongNotFound   bool
	UpdatesExternalTitles bool
}

// Run executes strategies in declaration order under the continuation
// rule:
//   - results non-empty and song_not_found not set: stop.
//   - results non-empty and song_not_found set: continue (lets
//     TRACK_ON_COMPILATION upgrade an artist-only fallback).
//   - otherwise: continue.
func Run(ctx context.Context, strategies []Strategy, state *State, req *Request) error {
	for _, s := range strategies {
		if !s.Condition(state, req) {
			continue
		}

		state.StrategiesTried = append(state.StrategiesTried, s.Name)

		if err := s.Execute(ctx, state, req); err != nil {
			return err
		}

		if len(state.Results) > 0 && !state.SongNotFound {
			break
		}
	}
	return nil
}
