package strava

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Strava rate limits:
// - 100 requests per 15 minutes
// - 1000 requests per day

const (
	defaultShortLimit  = 100
	defaultDailyLimit  = 1000
	shortWindow        = 15 * time.Minute
	defaultMinInterval = 150 * time.Millisecond // ~6.6 req/s max
)

// RateLimiter manages Strava API rate limits.
// The 15 minute and daily windows track the usage Strava reports in its
// response headers; the pacer spaces out individual requests.
type RateLimiter struct {
	mu sync.Mutex

	// 15-minute window
	shortLimit    int
	shortUsage    int
	shortResetsAt time.Time

	// Daily window
	dailyLimit    int
	dailyUsage    int
	dailyResetsAt time.Time

	pacer *rate.Limiter
	now   func() time.Time
}

// NewRateLimiter creates a new rate limiter with Strava's limits
func NewRateLimiter() *RateLimiter {
	return newRateLimiter(time.Now, defaultMinInterval)
}

func newRateLimiter(now func() time.Time, minInterval time.Duration) *RateLimiter {
	t := now()
	return &RateLimiter{
		shortLimit:    defaultShortLimit,
		shortResetsAt: t.Add(shortWindow),
		dailyLimit:    defaultDailyLimit,
		dailyResetsAt: nextUTCMidnight(t),
		pacer:         rate.NewLimiter(rate.Every(minInterval), 1),
		now:           now,
	}
}

// Wait blocks until a request can be made without exceeding rate limits
func (r *RateLimiter) Wait(ctx context.Context) error {
	if wait := r.reserveWindow(); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		r.resetExpired(true)
	}

	return r.pacer.Wait(ctx)
}

// reserveWindow counts a request against both windows, or returns how long to
// wait until the exhausted window resets.
func (r *RateLimiter) reserveWindow() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resetExpiredLocked(false)
	now := r.now()

	if r.dailyUsage >= r.dailyLimit {
		return r.dailyResetsAt.Sub(now)
	}
	if r.shortUsage >= r.shortLimit {
		return r.shortResetsAt.Sub(now)
	}

	r.shortUsage++
	r.dailyUsage++
	return 0
}

func (r *RateLimiter) resetExpired(force bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetExpiredLocked(force)
	r.shortUsage++
	r.dailyUsage++
}

func (r *RateLimiter) resetExpiredLocked(force bool) {
	now := r.now()
	if force && r.shortUsage >= r.shortLimit || now.After(r.shortResetsAt) {
		r.shortUsage = 0
		r.shortResetsAt = now.Add(shortWindow)
	}
	if force && r.dailyUsage >= r.dailyLimit || now.After(r.dailyResetsAt) {
		r.dailyUsage = 0
		r.dailyResetsAt = nextUTCMidnight(now)
	}
}

// UpdateFromHeaders updates rate limit state from Strava response headers
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strava returns: X-RateLimit-Limit: "100,1000" and X-RateLimit-Usage: "34,512"
	if short, daily, ok := parsePair(h.Get("X-RateLimit-Usage")); ok {
		r.shortUsage = short
		r.dailyUsage = daily
	}
	if short, daily, ok := parsePair(h.Get("X-RateLimit-Limit")); ok {
		r.shortLimit = short
		r.dailyLimit = daily
	}
}

func parsePair(v string) (first, second int, ok bool) {
	parts := strings.Split(v, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	first, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	second, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	return first, second, err1 == nil && err2 == nil
}

// Status returns current rate limit status
func (r *RateLimiter) Status() (shortRemaining, dailyRemaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shortLimit - r.shortUsage, r.dailyLimit - r.dailyUsage
}

// Usage returns current usage counts
func (r *RateLimiter) Usage() (shortUsage, dailyUsage int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shortUsage, r.dailyUsage
}

func nextUTCMidnight(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}
