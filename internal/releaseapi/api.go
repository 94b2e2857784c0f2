package releaseapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/radiolib/libraryd/internal/fuzzy"
	"github.com/radiolib/libraryd/internal/models"
)

// wireSearchResult is a single upstream search hit. Upstream titles are
// formatted "Artist - Album", the same convention Discogs itself uses.
type wireSearchResult struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Year       string `json:"year"`
	Thumb      string `json:"thumb"`
	CoverImage string `json:"cover_image"`
}

type wireSearchResponse struct {
	Results []wireSearchResult `json:"results"`
}

type wireTrack struct {
	Position string   `json:"position"`
	Title    string   `json:"title"`
	Duration string   `json:"duration"`
	Artists  []string `json:"artists"`
}

type wireRelease struct {
	ID         int         `json:"id"`
	Title      string      `json:"title"`
	Artists    []string    `json:"artists"`
	Year       int         `json:"year"`
	Tracklist  []wireTrack `json:"tracklist"`
	ArtworkURL string      `json:"artwork_url"`
}

// parseTitle splits an upstream "Artist - Album" title. Titles without a
// separator are treated as album-only.
func parseTitle(title string) (artist, album string) {
	if idx := strings.Index(title, " - "); idx >= 0 {
		return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+len(" - "):])
	}
	return "", title
}

// SearchByTrack performs a two-phase strict/keyword upstream query: a
// strict query pinning artist and track parameters, supplemented with a
// free-text keyword query when the strict phase returns fewer than three
// results.
func (c *Client) SearchByTrack(ctx context.Context, track, artist string, limit int) ([]models.ReleaseSummary, error) {
	strictParams := url.Values{"type": {"release"}, "track": {track}, "per_page": {strconv.Itoa(limit)}}
	if artist != "" {
		strictParams.Set("artist", artist)
	}

	var strict wireSearchResponse
	if err := c.get(ctx, "/database/search", strictParams, &strict); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	results := toReleaseSummaries(strict.Results, seen)

	if len(results) < 3 {
		queryParts := []string{track}
		if artist != "" {
			queryParts = append(queryParts, artist)
		}
		keywordParams := url.Values{
			"type":     {"release"},
			"q":        {strings.Join(queryParts, " ")},
			"per_page": {strconv.Itoa(limit)},
		}
		var keyword wireSearchResponse
		if err := c.get(ctx, "/database/search", keywordParams, &keyword); err == nil {
			results = append(results, toReleaseSummaries(keyword.Results, seen)...)
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func toReleaseSummaries(hits []wireSearchResult, seen map[string]bool) []models.ReleaseSummary {
	var out []models.ReleaseSummary
	for _, hit := range hits {
		artistName, album := parseTitle(hit.Title)
		key := strings.ToLower(album)
		if seen[key] {
			continue
		}
		seen[key] = true
		artworkURL := hit.CoverImage
		if artworkURL == "" {
			artworkURL = hit.Thumb
		}
		out = append(out, models.ReleaseSummary{
			ReleaseID:     hit.ID,
			ReleaseURL:    releaseURL(hit.ID),
			Album:         album,
			Artist:        artistName,
			ArtworkURL:    artworkURL,
			IsCompilation: strings.Contains(strings.ToLower(artistName), "various"),
		})
	}
	return out
}

// GetRelease fetches full release metadata by ID.
func (c *Client) GetRelease(ctx context.Context, releaseID int) (*models.ExternalReleaseRef, error) {
	var wire wireRelease
	if err := c.get(ctx, "/releases/"+strconv.Itoa(releaseID), nil, &wire); err != nil {
		return nil, err
	}

	tracklist := make([]models.TrackRef, len(wire.Tracklist))
	for i, t := range wire.Tracklist {
		tracklist[i] = models.TrackRef{
			Position: t.Position,
			Title:    t.Title,
			Duration: t.Duration,
			Artists:  t.Artists,
		}
	}

	primaryArtist := ""
	if len(wire.Artists) > 0 {
		primaryArtist = wire.Artists[0]
	}

	var year *int
	if wire.Year > 0 {
		y := wire.Year
		year = &y
	}

	return &models.ExternalReleaseRef{
		ReleaseID:  wire.ID,
		ReleaseURL: releaseURL(wire.ID),
		Title:      wire.Title,
		Artist:     primaryArtist,
		Year:       year,
		Tracklist:  tracklist,
		Cached:     false,
	}, nil
}

// Search performs an artist/album keyword search for artwork resolution.
func (c *Client) Search(ctx context.Context, artist, album string, limit int) ([]models.ReleaseSummary, error) {
	queryParts := make([]string, 0, 2)
	if artist != "" {
		queryParts = append(queryParts, artist)
	}
	if album != "" {
		queryParts = append(queryParts, album)
	}
	params := url.Values{
		"type":     {"release"},
		"q":        {strings.Join(queryParts, " ")},
		"per_page": {strconv.Itoa(limit)},
	}

	var wire wireSearchResponse
	if err := c.get(ctx, "/database/search", params, &wire); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	results := toReleaseSummaries(wire.Results, seen)
	sortBySimilarity(results, artist, album)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func sortBySimilarity(results []models.ReleaseSummary, artist, album string) {
	for i := range results {
		results[i].Score = 0.6*float64(fuzzy.TokenSetRatio(album, results[i].Album))/100 +
			0.4*float64(fuzzy.TokenSetRatio(artist, results[i].Artist))/100
	}
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func releaseURL(id int) string { return "https://releases.example/release/" + strconv.Itoa(id) }
