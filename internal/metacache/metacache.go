// Package metacache implements the persistent metadata cache tier: a
// local, sqlite-backed mirror of external release data queried with
// trigram fuzzy matching, replacing PostgreSQL's pg_trgm `%` operator and
// similarity() function with the Go-side scoring in trigram.go.
package metacache

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/radiolib/libraryd/internal/errs"
	"github.com/radiolib/libraryd/internal/models"
)

//go:embed schema.sql
var schema string

const queryTimeout = 3 * time.Second

// Store is the persistent metadata cache. Callers construct one only when
// a persistent cache DSN is configured; leaving it unconfigured degrades
// to a permanent miss rather than failing a request. Of its methods only
// IsAvailable accepts a nil *Store (reporting false); the others require
// a Store returned by Open, so callers skip the tier when it is nil.
type Store struct {
	db *sql.DB
}

// Open connects to the sqlite-backed persistent cache at dsn and ensures
// its schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("open metadata cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init metadata cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// IsAvailable pings the cache connection (used by the health endpoint).
func (s *Store) IsAvailable(ctx context.Context) bool {
	if s == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.PingContext(ctx) == nil
}

// SearchReleasesByTrack fuzzy-matches track against cached track titles,
// optionally filtered by artist trigram similarity, returning at most
// limit distinct releases ordered by track-title similarity.
func (s *Store) SearchReleasesByTrack(ctx context.Context, track, artist string, limit int) ([]models.ReleaseSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT rt.release_id, rt.title, r.title, ra.artist_name, r.artwork_url
		FROM release_track rt
		JOIN release r ON r.id = rt.release_id
		JOIN release_artist ra ON ra.release_id = r.id AND ra.is_extra = 0
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	type candidate struct {
		releaseID  int
		trackTitle string
		album      string
		artistName string
		artworkURL string
		score      float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var artworkURL sql.NullString
		if err := rows.Scan(&c.releaseID, &c.trackTitle, &c.album, &c.artistName, &artworkURL); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
		}
		c.artworkURL = artworkURL.String
		sim := trigramSimilarity(track, c.trackTitle)
		if sim < trigramThreshold {
			continue
		}
		if artist != "" && trigramSimilarity(artist, c.artistName) < trigramThreshold {
			continue
		}
		c.score = sim
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	var results []models.ReleaseSummary
	seenAlbums := make(map[string]bool)
	for _, c := range candidates {
		key := lower(c.album)
		if seenAlbums[key] {
			continue
		}
		seenAlbums[key] = true
		results = append(results, models.ReleaseSummary{
			ReleaseID:     c.releaseID,
			ReleaseURL:    releaseURL(c.releaseID),
			Album:         c.album,
			Artist:        c.artistName,
			ArtworkURL:    c.artworkURL,
			IsCompilation: isCompilationArtist(c.artistName),
			Cached:        true,
			Score:         c.score,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// GetRelease returns the full cached release, or (nil, nil) on a cache
// miss — a miss is not an error.
func (s *Store) GetRelease(ctx context.Context, releaseID int) (*models.ExternalReleaseRef, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var title string
	var year sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT title, release_year FROM release WHERE id = ?`, releaseID,
	).Scan(&title, &year)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}

	var primaryArtist string
	artistRows, err := s.db.QueryContext(ctx,
		`SELECT artist_name, is_extra FROM release_artist WHERE release_id = ? ORDER BY is_extra`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}
	for artistRows.Next() {
		var name string
		var isExtra int
		if err := artistRows.Scan(&name, &isExtra); err != nil {
			artistRows.Close()
			return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
		}
		if isExtra == 0 && primaryArtist == "" {
			primaryArtist = name
		}
	}
	artistRows.Close()

	trackArtists := make(map[int][]string)
	taRows, err := s.db.QueryContext(ctx,
		`SELECT track_sequence, artist_name FROM release_track_artist WHERE release_id = ? ORDER BY track_sequence`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}
	for taRows.Next() {
		var seq int
		var name string
		if err := taRows.Scan(&seq, &name); err != nil {
			taRows.Close()
			return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
		}
		trackArtists[seq] = append(trackArtists[seq], name)
	}
	taRows.Close()

	trackRows, err := s.db.QueryContext(ctx,
		`SELECT sequence, position, title, duration FROM release_track WHERE release_id = ? ORDER BY sequence`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}
	defer trackRows.Close()

	var tracklist []models.TrackRef
	for trackRows.Next() {
		var seq int
		var position, dur sql.NullString
		var trackTitle string
		if err := trackRows.Scan(&seq, &position, &trackTitle, &dur); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
		}
		tracklist = append(tracklist, models.TrackRef{
			Position: position.String,
			Title:    trackTitle,
			Duration: dur.String,
			Artists:  trackArtists[seq],
		})
	}
	if err := trackRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}

	var yearPtr *int
	if year.Valid {
		y := int(year.Int64)
		yearPtr = &y
	}

	return &models.ExternalReleaseRef{
		ReleaseID:  releaseID,
		ReleaseURL: releaseURL(releaseID),
		Title:      title,
		Artist:     primaryArtist,
		Year:       yearPtr,
		Tracklist:  tracklist,
		Cached:     true,
	}, nil
}

// WriteRelease upserts a fetched release into the cache, implementing the
// write-back rule that a deeper-tier hit is written back to every
// shallower tier.
func (s *Store) WriteRelease(ctx context.Context, release *models.ExternalReleaseRef) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO release (id, title, release_year) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, release_year = excluded.release_year
	`, release.ReleaseID, release.Title, release.Year); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}

	if release.Artist != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO release_artist (release_id, artist_name, is_extra) VALUES (?, ?, 0)
			ON CONFLICT(release_id, artist_name) DO NOTHING
		`, release.ReleaseID, release.Artist); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM release_track WHERE release_id = ?`, release.ReleaseID); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM release_track_artist WHERE release_id = ?`, release.ReleaseID); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}

	for i, track := range release.Tracklist {
		seq := i + 1
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO release_track (release_id, sequence, position, title, duration) VALUES (?, ?, ?, ?, ?)
		`, release.ReleaseID, seq, track.Position, track.Title, track.Duration); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
		}
		for _, a := range track.Artists {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO release_track_artist (release_id, track_sequence, artist_name) VALUES (?, ?, ?)
			`, release.ReleaseID, seq, a); err != nil {
				return fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}
	return nil
}

// SearchReleases fuzzy-matches artist and/or album against the cache.
func (s *Store) SearchReleases(ctx context.Context, artist, album string, limit int) ([]models.ReleaseSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if artist == "" && album == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.title, ra.artist_name, r.artwork_url
		FROM release r
		JOIN release_artist ra ON ra.release_id = r.id AND ra.is_extra = 0
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	type candidate struct {
		releaseID  int
		title      string
		artistName string
		artworkURL string
		score      float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var artworkURL sql.NullString
		if err := rows.Scan(&c.releaseID, &c.title, &c.artistName, &artworkURL); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
		}
		c.artworkURL = artworkURL.String

		titleSim, artistSim := 0.0, 0.0
		if album != "" {
			titleSim = trigramSimilarity(album, c.title)
		}
		if artist != "" {
			artistSim = trigramSimilarity(artist, c.artistName)
		}

		switch {
		case artist != "" && album != "":
			if titleSim < trigramThreshold && artistSim < trigramThreshold {
				continue
			}
			c.score = max(titleSim, artistSim)
		case artist != "":
			if artistSim < trigramThreshold {
				continue
			}
			c.score = artistSim
		default:
			if titleSim < trigramThreshold {
				continue
			}
			c.score = titleSim
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCacheUnavailable, err)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	var results []models.ReleaseSummary
	seenTitles := make(map[string]bool)
	for _, c := range candidates {
		key := lower(c.title)
		if seenTitles[key] {
			continue
		}
		seenTitles[key] = true
		results = append(results, models.ReleaseSummary{
			ReleaseID:  c.releaseID,
			ReleaseURL: releaseURL(c.releaseID),
			Album:      c.title,
			Artist:     c.artistName,
			ArtworkURL: c.artworkURL,
			Cached:     true,
			Score:      c.score,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func releaseURL(id int) string { return fmt.Sprintf("https://releases.example/release/%d", id) }

func isCompilationArtist(name string) bool { return strings.Contains(lower(name), "various") }

func lower(s string) string { return strings.ToLower(s) }
