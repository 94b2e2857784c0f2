// Package errs defines the error kinds the lookup pipeline can surface.
// Only ErrInvalidInput and ErrStoreUnavailable short-circuit a request;
// everything else degrades in place.
package errs

import "errors"

var (
	// ErrInvalidInput means the request has none of artist/song/album set.
	ErrInvalidInput = errors.New("invalid_input")
	// ErrStoreUnavailable means the catalog backing file is missing or unreadable.
	ErrStoreUnavailable = errors.New("store_unavailable")
	// ErrUpstream means a non-retriable external API failure. Never fails a
	// lookup on its own; the pipeline proceeds with empty external data.
	ErrUpstream = errors.New("upstream_error")
	// ErrCacheUnavailable means the persistent cache is unreachable. Always
	// soft-failed to a tier miss by the caller.
	ErrCacheUnavailable = errors.New("cache_unavailable")
	// ErrInternal is the catch-all for anything else.
	ErrInternal = errors.New("internal_error")
)
