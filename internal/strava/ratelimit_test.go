package strava

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterCountsRequests(t *testing.T) {
	r := newRateLimiter(time.Now, time.Millisecond)
	for range 3 {
		require.NoError(t, r.Wait(context.Background()))
	}

	short, daily := r.Usage()
	assert.Equal(t, 3, short)
	assert.Equal(t, 3, daily)
}

func TestRateLimiterUpdateFromHeaders(t *testing.T) {
	r := NewRateLimiter()

	h := http.Header{}
	h.Set("X-RateLimit-Usage", "34, 512")
	h.Set("X-RateLimit-Limit", "200,2000")
	r.UpdateFromHeaders(h)

	short, daily := r.Status()
	assert.Equal(t, 166, short)
	assert.Equal(t, 1488, daily)

	// Malformed headers are ignored.
	h.Set("X-RateLimit-Usage", "garbage")
	r.UpdateFromHeaders(h)
	short, _ = r.Status()
	assert.Equal(t, 166, short)
}

func TestRateLimiterBlocksWhenExhausted(t *testing.T) {
	r := newRateLimiter(time.Now, time.Millisecond)

	h := http.Header{}
	h.Set("X-RateLimit-Usage", "100,100")
	r.UpdateFromHeaders(h)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiterResetsExpiredWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := newRateLimiter(clock, time.Millisecond)

	h := http.Header{}
	h.Set("X-RateLimit-Usage", "100,100")
	r.UpdateFromHeaders(h)

	now = now.Add(16 * time.Minute)
	require.NoError(t, r.Wait(context.Background()))

	short, daily := r.Usage()
	assert.Equal(t, 1, short)
	assert.Equal(t, 101, daily)
}

func TestNextUTCMidnight(t *testing.T) {
	got := nextUTCMidnight(time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), got)
}
