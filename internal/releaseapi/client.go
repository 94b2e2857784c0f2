// Package releaseapi is the rate-limited HTTP client for the external
// release metadata provider: a Bearer-token REST client wrapping
// golang.org/x/time/rate for throughput, with a concurrency semaphore and
// 429/5xx exponential backoff layered on top.
package releaseapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/radiolib/libraryd/internal/errs"
	"github.com/radiolib/libraryd/internal/telemetry"
)

// MaxRetries caps 429/5xx retry attempts.
const MaxRetries = 2

// Client enforces the throughput and concurrency gates around every
// upstream request, acquired in order (throughput, then concurrency) and
// released in reverse. The concurrency semaphore wraps the whole retry
// loop; the rate limiter also gates every retry attempt within it.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	limiter     *rate.Limiter
	concurrency chan struct{}
	maxRetries  int
}

// New builds a client with a throughput gate of ratePerMinute requests
// per minute and a concurrency gate of maxConcurrent in-flight requests.
func New(baseURL, token string, ratePerMinute, maxConcurrent int) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		token:       token,
		limiter:     rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), 1),
		concurrency: make(chan struct{}, maxConcurrent),
		maxRetries:  MaxRetries,
	}
}

// IsAvailable performs a lightweight connectivity probe (health endpoint).
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	c.applyHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// get issues a rate-limited, retried GET against path with the given
// query parameters, decoding a successful JSON body into result.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}

	select {
	case c.concurrency <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.concurrency }()

	counters := telemetry.FromContext(ctx)
	logger := telemetry.ForRequest(ctx)

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%w: %v", errs.ErrUpstream, err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrUpstream, err)
		}
		c.applyHeaders(req)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		elapsed := time.Since(start)
		counters.AddAPITime(elapsed)
		counters.IncAPICall()
		telemetry.APICallsTotal.Inc()

		if err != nil {
			if attempt < c.maxRetries {
				if !sleepBackoff(ctx, attempt) {
					return fmt.Errorf("%w: %v", errs.ErrUpstream, ctx.Err())
				}
				continue
			}
			return fmt.Errorf("%w: %v", errs.ErrUpstream, err)
		}

		if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
			logger.Debug("upstream rate limit remaining", "remaining", remaining)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			if attempt < c.maxRetries {
				logger.Warn("upstream retry", "status", resp.StatusCode, "attempt", attempt+1)
				if !sleepBackoff(ctx, attempt) {
					return fmt.Errorf("%w: %v", errs.ErrUpstream, ctx.Err())
				}
				continue
			}
			return fmt.Errorf("%w: status %d after %d retries", errs.ErrUpstream, resp.StatusCode, c.maxRetries)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("%w: status %d", errs.ErrUpstream, resp.StatusCode)
		}

		if readErr != nil {
			return fmt.Errorf("%w: %v", errs.ErrUpstream, readErr)
		}
		if result != nil {
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("%w: %v", errs.ErrUpstream, err)
			}
		}
		return nil
	}

	return fmt.Errorf("%w: retries exhausted", errs.ErrUpstream)
}

// sleepBackoff waits 2^attempt seconds, honoring ctx cancellation. It
// reports whether the wait completed normally.
func sleepBackoff(ctx context.Context, attempt int) bool {
	delay := time.Duration(1<<uint(attempt)) * time.Second
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
