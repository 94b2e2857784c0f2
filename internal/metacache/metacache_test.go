package metacache

import (
	"context"
	"testing"

	"github.com/radiolib/libraryd/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRelease() *models.ExternalReleaseRef {
	year := 1975
	return &models.ExternalReleaseRef{
		ReleaseID: 100,
		Title:     "Wish You Were Here",
		Artist:    "Pink Floyd",
		Year:      &year,
		Tracklist: []models.TrackRef{
			{Position: "A1", Title: "Shine On You Crazy Diamond", Artists: []string{"Pink Floyd"}},
			{Position: "A2", Title: "Welcome to the Machine", Artists: []string{"Pink Floyd"}},
		},
	}
}

func TestWriteAndGetRelease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.WriteRelease(ctx, sampleRelease()); err != nil {
		t.Fatalf("WriteRelease: %v", err)
	}

	got, err := store.GetRelease(ctx, 100)
	if err != nil {
		t.Fatalf("GetRelease: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached release, got nil")
	}
	if got.Title != "Wish You Were Here" || got.Artist != "Pink Floyd" {
		t.Errorf("got %+v", got)
	}
	if len(got.Tracklist) != 2 {
		t.Errorf("Tracklist len = %d, want 2", len(got.Tracklist))
	}
	if !got.Cached {
		t.Error("expected Cached = true")
	}
}

func TestGetReleaseMissReturnsNilNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetRelease(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetRelease: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for cache miss, got %+v", got)
	}
}

func TestWriteReleaseUpsertsOnReWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	release := sampleRelease()

	if err := store.WriteRelease(ctx, release); err != nil {
		t.Fatalf("first WriteRelease: %v", err)
	}
	release.Title = "Wish You Were Here (Remastered)"
	release.Tracklist = release.Tracklist[:1]
	if err := store.WriteRelease(ctx, release); err != nil {
		t.Fatalf("second WriteRelease: %v", err)
	}

	got, err := store.GetRelease(ctx, 100)
	if err != nil {
		t.Fatalf("GetRelease: %v", err)
	}
	if got.Title != "Wish You Were Here (Remastered)" {
		t.Errorf("Title = %q, want updated title", got.Title)
	}
	if len(got.Tracklist) != 1 {
		t.Errorf("Tracklist len = %d, want 1 after re-write", len(got.Tracklist))
	}
}

func TestSearchReleasesByTrackFuzzyMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.WriteRelease(ctx, sampleRelease()); err != nil {
		t.Fatalf("WriteRelease: %v", err)
	}

	results, err := store.SearchReleasesByTrack(ctx, "Shine On You Crazy Diamond", "Pink Floyd", 10)
	if err != nil {
		t.Fatalf("SearchReleasesByTrack: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Album != "Wish You Were Here" {
		t.Errorf("Album = %q, want Wish You Were Here", results[0].Album)
	}
}

func TestSearchReleasesByTrackNoMatchBelowThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.WriteRelease(ctx, sampleRelease()); err != nil {
		t.Fatalf("WriteRelease: %v", err)
	}

	results, err := store.SearchReleasesByTrack(ctx, "Completely Unrelated Song Name", "", 10)
	if err != nil {
		t.Fatalf("SearchReleasesByTrack: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no matches, got %d", len(results))
	}
}

func TestSearchReleasesByArtistAndAlbum(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.WriteRelease(ctx, sampleRelease()); err != nil {
		t.Fatalf("WriteRelease: %v", err)
	}

	results, err := store.SearchReleases(ctx, "Pink Floyd", "", 10)
	if err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected a match by artist")
	}
}

func TestSearchReleasesRequiresArtistOrAlbum(t *testing.T) {
	store := newTestStore(t)
	results, err := store.SearchReleases(context.Background(), "", "", 10)
	if err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results when both artist and album are blank, got %v", results)
	}
}

func TestIsAvailableNilStore(t *testing.T) {
	var store *Store
	if store.IsAvailable(context.Background()) {
		t.Error("expected nil *Store to report unavailable")
	}
}
