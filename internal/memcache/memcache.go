// Package memcache implements the in-process TTL cache tier, built on
// hashicorp's expirable.LRU with Prometheus hit/miss counters for each
// named tier. Reads never promote an entry, so eviction at capacity
// falls on whichever entry was inserted longest ago, not whichever was
// read longest ago.
package memcache

import (
	"crypto/sha256"
	"encoding/hex"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/radiolib/libraryd/internal/telemetry"
)

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memcache_hits_total",
		Help: "In-memory cache hits, by tier.",
	}, []string{"tier"})
	missesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memcache_misses_total",
		Help: "In-memory cache misses, by tier.",
	}, []string{"tier"})
)

// Tier is a named, TTL-bounded, size-bounded in-memory cache. A miss is
// never cached, only ever re-attempted — Set drops nil values.
type Tier[V any] struct {
	name  string
	cache *expirable.LRU[string, V]
}

// New builds a cache tier with the given name (used for metric labels and
// telemetry counters), max entry count, and TTL.
func New[V any](name string, size int, ttl time.Duration) *Tier[V] {
	return &Tier[V]{
		name:  name,
		cache: expirable.NewLRU[string, V](size, nil, ttl),
	}
}

// NewTrackCache builds the track-lookup memory tier.
func NewTrackCache(size int, ttl time.Duration) *Tier[any] { return New[any]("track", size, ttl) }

// NewReleaseCache builds the release-lookup memory tier.
func NewReleaseCache(size int, ttl time.Duration) *Tier[any] {
	return New[any]("release", size, ttl)
}

// NewSearchCache builds the catalog-search memory tier.
func NewSearchCache(size int, ttl time.Duration) *Tier[any] { return New[any]("search", size, ttl) }

// Get fetches a cached value. skipCache bypasses the tier entirely
// without counting as a miss, driven by the request-level skip_cache flag.
// It reads via Peek rather than Get so a read never bumps an entry's
// recency: eviction at capacity is by insertion order, matching the
// reference cachetools.TTLCache semantics, not by last access.
func (t *Tier[V]) Get(counters *telemetry.Counters, skipCache bool, keyParts ...string) (V, bool) {
	var zero V
	if skipCache {
		return zero, false
	}
	key := Key(keyParts...)
	val, ok := t.cache.Peek(key)
	if ok {
		hitsTotal.WithLabelValues(t.name).Inc()
		if counters != nil {
			counters.IncMemoryHit()
		}
		return val, true
	}
	missesTotal.WithLabelValues(t.name).Inc()
	return zero, false
}

// Set stores a value, bypassed entirely by skip_cache so a forced refresh
// never overwrites a good cached entry with a possibly-stale write. A nil
// value (an absent release, an empty result list) is not stored, so a
// negative result is never cached.
func (t *Tier[V]) Set(skipCache bool, value V, keyParts ...string) {
	if skipCache {
		return
	}
	rv := reflect.ValueOf(any(value))
	if !rv.IsValid() {
		return
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return
		}
	}
	t.cache.Add(Key(keyParts...), value)
}

// Len reports the current entry count.
func (t *Tier[V]) Len() int { return t.cache.Len() }

// Key derives a stable cache key from an operation name plus its
// canonicalized, order-preserving arguments, so callers never need to
// hand-build key strings that drift out of sync across call sites.
func Key(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.ToLower(strings.TrimSpace(p))
	}
	joined := strings.Join(normalized, "\x1f")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:16])
}
