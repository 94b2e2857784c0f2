package library

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/radiolib/libraryd/internal/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rows := []struct {
		id                          int
		artist, title, genre, format string
	}{
		{1, "Pink Floyd", "Wish You Were Here", "Rock", "LP"},
		{2, "Pink Floyd", "The Dark Side of the Moon", "Rock", "LP"},
		{3, "Radiohead", "OK Computer", "Alternative", "CD"},
		{4, "Radiohead", "In Rainbows", "Alternative", "CD"},
		{5, "The Beatles", "Abbey Road", "Rock", "LP"},
	}
	for _, r := range rows {
		if _, err := store.db.Exec(
			`INSERT INTO library (id, artist, title, genre, format) VALUES (?, ?, ?, ?, ?)`,
			r.id, r.artist, r.title, r.genre, r.format,
		); err != nil {
			t.Fatalf("seed row %d: %v", r.id, err)
		}
	}
	return store
}

func TestSearchFullText(t *testing.T) {
	store := newTestStore(t)
	items, err := store.Search(context.Background(), "Radiohead OK Computer", DefaultOptions())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected at least one full-text match")
	}
	if items[0].Artist != "Radiohead" {
		t.Errorf("Artist = %q, want Radiohead", items[0].Artist)
	}
}

func TestSearchFallsThroughToLike(t *testing.T) {
	store := newTestStore(t)
	// A substring with no whole-word FTS match but a LIKE-tokenizable hit.
	items, err := store.Search(context.Background(), "Beatl Abbey", DefaultOptions())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected LIKE fallback to find a match")
	}
}

func TestSearchFallsThroughToFuzzy(t *testing.T) {
	store := newTestStore(t)
	// Misspelled beyond what LIKE substring matching can tolerate.
	items, err := store.Search(context.Background(), "Radiohed OK Computr", DefaultOptions())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected fuzzy fallback to find a match")
	}
}

func TestSearchNoFallbackReturnsEmptyOnMiss(t *testing.T) {
	store := newTestStore(t)
	opts := Options{FallbackToLike: false, FallbackToFuzzy: false, Limit: 10}
	items, err := store.Search(context.Background(), "Nonexistent Artist Zzzz", opts)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no results without fallback, got %d", len(items))
	}
}

func TestSearchRespectsArtistFilter(t *testing.T) {
	store := newTestStore(t)
	opts := DefaultOptions()
	opts.ArtistFilter = "beatles"
	items, err := store.Search(context.Background(), "Road", opts)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, item := range items {
		if item.Artist != "The Beatles" {
			t.Errorf("got artist %q, filter should have excluded it", item.Artist)
		}
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	store := newTestStore(t)
	opts := DefaultOptions()
	opts.Limit = 1
	items, err := store.Search(context.Background(), "Rock", opts)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) > 1 {
		t.Errorf("expected at most 1 result, got %d", len(items))
	}
}

func TestFindSimilarArtistCorrectsTypo(t *testing.T) {
	store := newTestStore(t)
	got, err := store.FindSimilarArtist(context.Background(), "Radiohed")
	if err != nil {
		t.Fatalf("FindSimilarArtist: %v", err)
	}
	if got != "Radiohead" {
		t.Errorf("FindSimilarArtist = %q, want Radiohead", got)
	}
}

func TestFindSimilarArtistReturnsEmptyForExactMatch(t *testing.T) {
	store := newTestStore(t)
	got, err := store.FindSimilarArtist(context.Background(), "Radiohead")
	if err != nil {
		t.Fatalf("FindSimilarArtist: %v", err)
	}
	if got != "" {
		t.Errorf("FindSimilarArtist for exact match = %q, want empty", got)
	}
}

func TestFindSimilarArtistReturnsEmptyForNoMatch(t *testing.T) {
	store := newTestStore(t)
	got, err := store.FindSimilarArtist(context.Background(), "Zzzzxq Nonexistent")
	if err != nil {
		t.Fatalf("FindSimilarArtist: %v", err)
	}
	if got != "" {
		t.Errorf("FindSimilarArtist unrelated input = %q, want empty", got)
	}
}

func TestSearchDiacriticEquivalence(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.db.Exec(
		`INSERT INTO library (id, artist, title, genre, format) VALUES (?, ?, ?, ?, ?)`,
		6, "Jørgen Plaetner", "Electronic Music", "Electronic", "LP",
	); err != nil {
		t.Fatalf("seed diacritic row: %v", err)
	}

	items, err := store.Search(context.Background(), "jorgen plaetner", DefaultOptions())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected the diacritic-bearing row to match a diacritics-free query")
	}
	if items[0].Artist != "Jørgen Plaetner" {
		t.Errorf("Artist = %q, want Jørgen Plaetner", items[0].Artist)
	}
}

func TestFindSimilarArtistDiacriticEquivalence(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.db.Exec(
		`INSERT INTO library (id, artist, title, genre, format) VALUES (?, ?, ?, ?, ?)`,
		6, "Jørgen Plaetner", "Electronic Music", "Electronic", "LP",
	); err != nil {
		t.Fatalf("seed diacritic row: %v", err)
	}

	got, err := store.FindSimilarArtist(context.Background(), "Jorgen Plaetner")
	if err != nil {
		t.Fatalf("FindSimilarArtist: %v", err)
	}
	if got != "" {
		t.Errorf("FindSimilarArtist for a diacritic-only difference = %q, want empty (already an exact fold match)", got)
	}
}

func TestIsAvailable(t *testing.T) {
	store := newTestStore(t)
	if !store.IsAvailable(context.Background()) {
		t.Error("expected freshly opened store to be available")
	}
}

func TestOpenReturnsStoreUnavailableForMissingFile(t *testing.T) {
	_, err := Open(t.TempDir() + "/does-not-exist.db")
	if !errors.Is(err, errs.ErrStoreUnavailable) {
		t.Errorf("Open on a missing catalog file: got %v, want errs.ErrStoreUnavailable", err)
	}
}

func TestReopen(t *testing.T) {
	path := t.TempDir() + "/catalog.db"
	if f, err := os.Create(path); err != nil {
		t.Fatalf("create catalog file: %v", err)
	} else {
		f.Close()
	}

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, err := store.db.Exec(`INSERT INTO library (id, artist, title) VALUES (1, 'X', 'Y')`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := store.Reopen(); err != nil {
		t.Fatalf("Reopen: %v", err)
	}

	items, err := store.Search(context.Background(), "X Y", DefaultOptions())
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(items) == 0 {
		t.Error("expected data to survive Reopen")
	}
}
