// Package library implements the three-level catalog search cascade and
// artist-correction lookup: full-text -> token-AND substring -> fuzzy
// token-set scoring, each level falling through to the next on a syntax
// error or empty result set.
package library

import (
	"context"
	_ "embed"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/radiolib/libraryd/internal/errs"
	"github.com/radiolib/libraryd/internal/fuzzy"
	"github.com/radiolib/libraryd/internal/models"
	"github.com/radiolib/libraryd/internal/normalize"
)

//go:embed schema.sql
var schema string

// fuzzyCandidateLimit is the number of prefix-matched rows fetched for
// scoring at the fuzzy tier.
const fuzzyCandidateLimit = 500

// fuzzyThreshold is the minimum token-set-ratio score to keep a fuzzy
// candidate.
const fuzzyThreshold = 70

// artistCorrectionThreshold is the minimum score for FindSimilarArtist
// to accept a correction.
const artistCorrectionThreshold = 85

// queryTimeout bounds every catalog query.
const queryTimeout = 5 * time.Second

// sqliteDriverName is a mattn/go-sqlite3 driver registered with a
// connect hook that exposes normalize.Normalize as the SQL scalar
// function normfold(). The LIKE-based tiers compare against normfold(artist)
// / normfold(title) rather than the raw stored columns, since sqlite's
// builtin lower() does not fold diacritics and the catalog stores names
// as typed (e.g. "Jørgen Plaetner").
const sqliteDriverName = "sqlite3_libraryd_normfold"

var registerDriverOnce sync.Once

func registerDriver() {
	registerDriverOnce.Do(func() {
		sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("normfold", normalize.Normalize, true)
			},
		})
	})
}

// Store wraps the embedded SQLite catalog. mu guards db against a
// concurrent Reopen, so an in-flight query never sees a half-closed
// connection while the catalog file is being replaced underneath it.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Options controls the search cascade.
type Options struct {
	FallbackToLike  bool
	FallbackToFuzzy bool
	Limit           int
	ArtistFilter    string
}

// DefaultOptions enables both fallback levels, per spec's stated default.
func DefaultOptions() Options {
	return Options{FallbackToLike: true, FallbackToFuzzy: true, Limit: 10}
}

// Open connects to the catalog database at path and ensures the schema
// exists. path must already exist on disk — the catalog is provisioned
// out of band (export script or admin upload) — except for the special
// SQLite ":memory:" identifier, which never touches disk. A missing file
// surfaces as errs.ErrStoreUnavailable rather than silently starting an
// empty catalog.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: catalog file %s: %v", errs.ErrStoreUnavailable, path, err)
		}
	}

	registerDriver()
	db, err := sql.Open(sqliteDriverName, fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", path))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// IsAvailable pings the catalog connection (used by the health endpoint).
func (s *Store) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.PingContext(ctx) == nil
}

// Reopen closes the current connection and reconnects to the catalog
// file at its original path — the hook a catalog file replacement calls
// after swapping the file on disk.
func (s *Store) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close catalog before reopen: %w", err)
	}
	registerDriver()
	db, err := sql.Open(sqliteDriverName, fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.path))
	if err != nil {
		return fmt.Errorf("reopen catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("init reopened catalog schema: %w", err)
	}
	s.db = db
	return nil
}

const selectColumns = `id, artist, title, coalesce(call_letters,''), coalesce(artist_call_number,''),
	coalesce(release_call_number,''), coalesce(genre,''), coalesce(format,''), coalesce(alternate_artist_name,'')`

func scanItem(rows *sql.Rows) (models.LibraryItem, error) {
	var item models.LibraryItem
	err := rows.Scan(&item.ID, &item.Artist, &item.Title, &item.CallLetters,
		&item.ArtistCallNumber, &item.ReleaseCallNumber, &item.Genre, &item.Format, &item.AlternateArtist)
	return item, err
}

// Search runs the three-level cascade against query.
func (s *Store) Search(ctx context.Context, query string, opts Options) ([]models.LibraryItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	items, err := s.fullTextSearch(ctx, query, opts)
	if err != nil {
		if !isSQLiteError(err) {
			return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
		}
		items = nil // FTS syntax error: fall through
	}
	if len(items) > 0 {
		return items, nil
	}

	if opts.FallbackToLike {
		items, err = s.likeSearch(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
		}
		if len(items) > 0 {
			return items, nil
		}
	}

	if opts.FallbackToFuzzy {
		return s.fuzzySearch(ctx, query, opts)
	}

	return nil, nil
}

// isSQLiteError distinguishes an FTS syntax error (fall through to LIKE)
// from a connectivity failure (store unavailable). SQLite reports FTS
// query-syntax problems as *sqlite3.Error with SQLITE_ERROR; a missing
// database file surfaces earlier, at Open.
func isSQLiteError(err error) bool {
	return err != nil && !errors.Is(err, sql.ErrConnDone)
}

func (s *Store) fullTextSearch(ctx context.Context, query string, opts Options) ([]models.LibraryItem, error) {
	normalized := normalize.Normalize(query)
	if normalized == "" {
		return nil, nil
	}

	sqlQuery := fmt.Sprintf(`
		SELECT %s FROM library l
		JOIN library_fts fts ON l.id = fts.rowid
		WHERE library_fts MATCH ?
		%s
		LIMIT ?`, selectColumns, artistFilterClause(opts.ArtistFilter, "l"))

	args := []any{normalized}
	if opts.ArtistFilter != "" {
		args = append(args, "%"+normalize.Normalize(opts.ArtistFilter)+"%")
	}
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func artistFilterClause(artist, alias string) string {
	if artist == "" {
		return ""
	}
	return fmt.Sprintf("AND lower(%s.artist) LIKE ?", alias)
}

// likeSearch is the token-AND substring tier: every remaining token must
// match artist or title, case-insensitively and diacritics-folded.
func (s *Store) likeSearch(ctx context.Context, query string, opts Options) ([]models.LibraryItem, error) {
	tokens := normalize.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	conditions := ""
	args := make([]any, 0, len(tokens)*2+2)
	for _, tok := range tokens {
		conditions += " AND (normfold(artist) LIKE ? OR normfold(title) LIKE ?)"
		args = append(args, "%"+tok+"%", "%"+tok+"%")
	}

	if opts.ArtistFilter != "" {
		conditions += " AND normfold(artist) LIKE ?"
		args = append(args, "%"+normalize.Normalize(opts.ArtistFilter)+"%")
	}

	sqlQuery := fmt.Sprintf(`SELECT %s FROM library WHERE 1=1 %s LIMIT ?`, selectColumns, conditions)
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

// fuzzySearch is the third tier: fetch up to fuzzyCandidateLimit rows by a
// 3-character prefix of the longest remaining token, score each against
// the full query, keep >=70, sort descending with ties broken by lower id.
func (s *Store) fuzzySearch(ctx context.Context, query string, opts Options) ([]models.LibraryItem, error) {
	tokens := normalize.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	longest := tokens[0]
	for _, t := range tokens[1:] {
		if len(t) > len(longest) {
			longest = t
		}
	}
	prefix := longest
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}

	conditions := "(normfold(artist) LIKE ? OR normfold(title) LIKE ?)"
	args := []any{prefix + "%", prefix + "%"}
	if opts.ArtistFilter != "" {
		conditions += " AND normfold(artist) LIKE ?"
		args = append(args, "%"+normalize.Normalize(opts.ArtistFilter)+"%")
	}

	sqlQuery := fmt.Sprintf(`SELECT %s FROM library WHERE %s LIMIT ?`, selectColumns, conditions)
	args = append(args, fuzzyCandidateLimit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	candidates, err := collectItems(rows)
	if err != nil {
		return nil, err
	}

	type scored struct {
		item  models.LibraryItem
		score int
	}
	results := make([]scored, 0, len(candidates))
	for _, item := range candidates {
		combined := item.Artist + " " + item.Title
		score := fuzzy.TokenSetRatio(query, combined)
		if score >= fuzzyThreshold {
			results = append(results, scored{item, score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].item.ID < results[j].item.ID
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	out := make([]models.LibraryItem, len(results))
	for i, r := range results {
		out[i] = r.item
	}
	return out, nil
}

// FindSimilarArtist fuzzy-matches artist against catalog artists sharing a
// 3-character prefix of its first non-stopword word, returning the best
// match at score >= 85, or "" if none qualifies or the best match equals
// artist after normalization.
func (s *Store) FindSimilarArtist(ctx context.Context, artist string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	s.mu.RLock()
	defer s.mu.RUnlock()

	words := normalize.Tokenize(artist)
	if len(words) == 0 {
		return "", nil
	}
	firstWord := words[0]
	prefix := firstWord
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT artist FROM library WHERE normfold(artist) LIKE ? LIMIT ?`,
		prefix+"%", fuzzyCandidateLimit)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	best := ""
	bestScore := 0
	for rows.Next() {
		var candidate string
		if err := rows.Scan(&candidate); err != nil {
			return "", err
		}
		score := fuzzy.TokenSetRatio(artist, candidate)
		if score > bestScore && score >= artistCorrectionThreshold {
			bestScore = score
			best = candidate
		}
	}

	if best != "" && normalize.Normalize(best) == normalize.Normalize(artist) {
		return "", nil
	}
	return best, rows.Err()
}

func collectItems(rows *sql.Rows) ([]models.LibraryItem, error) {
	var items []models.LibraryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
