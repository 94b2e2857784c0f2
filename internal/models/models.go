// Package models defines the request/response and catalog shapes shared
// across the lookup pipeline.
package models

// LookupRequest is the inbound search request. Fields are pointers-by-
// absence: a field left out of the JSON body is nil. HasArtist, HasSong
// and HasAlbum treat a nil field and a blank one alike as absent.
type LookupRequest struct {
	Artist     *string `json:"artist,omitempty"`
	Song       *string `json:"song,omitempty"`
	Album      *string `json:"album,omitempty"`
	RawMessage string  `json:"raw_message,omitempty"`
	SkipCache  bool    `json:"skip_cache,omitempty"`
}

// HasArtist reports whether the artist field is present and non-blank.
func (r *LookupRequest) HasArtist() bool { return r != nil && strPresent(r.Artist) }

// HasSong reports whether the song field is present and non-blank.
func (r *LookupRequest) HasSong() bool { return r != nil && strPresent(r.Song) }

// HasAlbum reports whether the album field is present and non-blank.
func (r *LookupRequest) HasAlbum() bool { return r != nil && strPresent(r.Album) }

func strPresent(s *string) bool { return s != nil && *s != "" }

// ArtistOr returns the artist value or fallback if absent.
func (r *LookupRequest) ArtistOr(fallback string) string {
	if r.HasArtist() {
		return *r.Artist
	}
	return fallback
}

// SongOr returns the song value or fallback if absent.
func (r *LookupRequest) SongOr(fallback string) string {
	if r.HasSong() {
		return *r.Song
	}
	return fallback
}

// AlbumOr returns the album value or fallback if absent.
func (r *LookupRequest) AlbumOr(fallback string) string {
	if r.HasAlbum() {
		return *r.Album
	}
	return fallback
}

// Valid reports the invariant that at least one of artist/song/album is
// present.
func (r *LookupRequest) Valid() bool {
	return r != nil && (r.HasArtist() || r.HasSong() || r.HasAlbum())
}

// LibraryItem is a single catalog entry. Uniquely identified by ID and
// immutable within a request.
type LibraryItem struct {
	ID                 int64  `json:"id"`
	Artist             string `json:"artist"`
	Title              string `json:"title"`
	CallLetters        string `json:"call_letters,omitempty"`
	ArtistCallNumber   string `json:"artist_call_number,omitempty"`
	ReleaseCallNumber  string `json:"release_call_number,omitempty"`
	Genre              string `json:"genre,omitempty"`
	Format             string `json:"format,omitempty"`
	AlternateArtist    string `json:"alternate_artist_name,omitempty"`
}

// TrackRef describes a single track within an external release's tracklist.
type TrackRef struct {
	Position string   `json:"position,omitempty"`
	Title    string   `json:"title"`
	Duration string   `json:"duration,omitempty"`
	Artists  []string `json:"artists,omitempty"`
}

// ExternalReleaseRef is a record from the external metadata provider,
// identified by ReleaseID.
type ExternalReleaseRef struct {
	ReleaseID  int        `json:"release_id"`
	ReleaseURL string     `json:"release_url"`
	Title      string     `json:"title"`
	Artist     string     `json:"artist"`
	Year       *int       `json:"year,omitempty"`
	Tracklist  []TrackRef `json:"tracklist,omitempty"`
	Cached     bool       `json:"cached"`
}

// ReleaseSummary is a lightweight search hit from the release catalog —
// enough to drive strategy matching without the full tracklist that
// ExternalReleaseRef carries.
type ReleaseSummary struct {
	ReleaseID     int     `json:"release_id"`
	ReleaseURL    string  `json:"release_url"`
	Album         string  `json:"album"`
	Artist        string  `json:"artist"`
	ArtworkURL    string  `json:"artwork_url,omitempty"`
	IsCompilation bool    `json:"is_compilation"`
	Cached        bool    `json:"cached"`
	Score         float64 `json:"-"`
}

// Artwork is the artwork resolved for a catalog item during the lookup's
// artwork-fetch step.
type Artwork struct {
	Album      string  `json:"album,omitempty"`
	Artist     string  `json:"artist,omitempty"`
	ReleaseID  int     `json:"release_id"`
	ReleaseURL string  `json:"release_url,omitempty"`
	ArtworkURL string  `json:"artwork_url,omitempty"`
	Confidence float64 `json:"confidence"`
	Cached     bool    `json:"cached"`
}

// SearchType enumerates how a lookup's results were produced.
type SearchType string

const (
	SearchTypeDirect       SearchType = "direct"
	SearchTypeSwapped      SearchType = "swapped"
	SearchTypeCompilation  SearchType = "compilation"
	SearchTypeSongAsArtist SearchType = "song_as_artist"
	SearchTypeNone         SearchType = "none"
)

// StrategyName identifies a search strategy for telemetry.
type StrategyName string

const (
	StrategyArtistPlusAlbum     StrategyName = "artist_plus_album"
	StrategySwappedInterp       StrategyName = "swapped_interpretation"
	StrategyTrackOnCompilation  StrategyName = "track_on_compilation"
	StrategySongAsArtist        StrategyName = "song_as_artist"
)

// LookupResultItem pairs a catalog item with its (possibly absent) artwork.
type LookupResultItem struct {
	LibraryItem LibraryItem `json:"library_item"`
	Artwork     *Artwork    `json:"artwork,omitempty"`
}

// CacheStats mirrors the per-request counters for the response payload.
type CacheStats struct {
	MemoryHits int64 `json:"memory_hits"`
	PgHits     int64 `json:"pg_hits"`
	PgMisses   int64 `json:"pg_misses"`
	APICalls   int64 `json:"api_calls"`
	PgTimeMs   int64 `json:"pg_time_ms"`
	APITimeMs  int64 `json:"api_time_ms"`
}

// LookupResponse is the shape returned from /api/v1/lookup.
type LookupResponse struct {
	Results            []LookupResultItem `json:"results"`
	SearchType         SearchType         `json:"search_type"`
	SongNotFound       bool               `json:"song_not_found"`
	FoundOnCompilation bool               `json:"found_on_compilation"`
	ContextMessage     string             `json:"context_message,omitempty"`
	CorrectedArtist    string             `json:"corrected_artist,omitempty"`
	CacheStats         *CacheStats        `json:"cache_stats,omitempty"`
}
