// Package telemetry threads per-request counters and step timing through
// context.Context, and exposes structured logging and Prometheus metrics
// shared across the process.
package telemetry

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters is the per-request counter set. Values are monotonically
// non-decreasing within a request.
// All fields use atomics so concurrent fan-out (track validation, artwork
// fetch) can increment them race-free without a shared mutex.
type Counters struct {
	MemoryHits int64
	PgHits     int64
	PgMisses   int64
	APICalls   int64
	PgTimeMs   int64
	APITimeMs  int64
}

func (c *Counters) IncMemoryHit()          { atomic.AddInt64(&c.MemoryHits, 1) }
func (c *Counters) IncPgHit()              { atomic.AddInt64(&c.PgHits, 1) }
func (c *Counters) IncPgMiss()             { atomic.AddInt64(&c.PgMisses, 1) }
func (c *Counters) IncAPICall()            { atomic.AddInt64(&c.APICalls, 1) }
func (c *Counters) AddPgTime(d time.Duration)  { atomic.AddInt64(&c.PgTimeMs, d.Milliseconds()) }
func (c *Counters) AddAPITime(d time.Duration) { atomic.AddInt64(&c.APITimeMs, d.Milliseconds()) }

// Snapshot copies the current counter values.
func (c *Counters) Snapshot() Counters {
	return Counters{
		MemoryHits: atomic.LoadInt64(&c.MemoryHits),
		PgHits:     atomic.LoadInt64(&c.PgHits),
		PgMisses:   atomic.LoadInt64(&c.PgMisses),
		APICalls:   atomic.LoadInt64(&c.APICalls),
		PgTimeMs:   atomic.LoadInt64(&c.PgTimeMs),
		APITimeMs:  atomic.LoadInt64(&c.APITimeMs),
	}
}

type ctxKey int

const (
	counterKey ctxKey = iota
	requestIDKey
)

// WithCounters attaches a fresh Counters value to ctx, scoped to one
// request.
func WithCounters(ctx context.Context) context.Context {
	return context.WithValue(ctx, counterKey, &Counters{})
}

// FromContext returns the request's Counters, or a scratch instance if
// none was attached (so callers never need a nil check).
func FromContext(ctx context.Context) *Counters {
	if c, ok := ctx.Value(counterKey).(*Counters); ok {
		return c
	}
	return &Counters{}
}

// WithRequestID attaches a request identifier to ctx for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request identifier attached to ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Logger is the process-wide structured logger.
var Logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      time.RFC3339,
})

// ForRequest returns a logger annotated with the request's ID, if any.
func ForRequest(ctx context.Context) *log.Logger {
	if id := RequestID(ctx); id != "" {
		return Logger.With("request_id", id)
	}
	return Logger
}

// SetLevel adjusts the process-wide log level.
func SetLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	Logger.SetLevel(lvl)
}

// StepTimer records how long a named orchestrator step took.
// Usage: defer telemetry.StepTimer(ctx, "artwork_fetch")().
func StepTimer(ctx context.Context, step string) func() {
	start := time.Now()
	return func() {
		stepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
		ForRequest(ctx).Debug("step complete", "step", step, "duration_ms", time.Since(start).Milliseconds())
	}
}

// Prometheus metrics, following the promauto.NewCounter pattern used for
// the memory-cache tier (see internal/memcache).
var (
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "lookup_step_duration_seconds",
		Help: "Duration of each lookup orchestrator step.",
	}, []string{"step"})

	StrategySuccessTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_strategy_success_total",
		Help: "Count of lookups with results, by the last strategy the pipeline ran.",
	}, []string{"strategy"})

	APICallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lookup_upstream_api_calls_total",
		Help: "Total upstream release-API requests issued.",
	})

	PgCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lookup_pg_cache_hits_total",
		Help: "Total persistent metadata cache hits.",
	})

	PgCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lookup_pg_cache_misses_total",
		Help: "Total persistent metadata cache misses.",
	})
)
