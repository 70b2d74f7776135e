package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type recordingObserver struct {
	mu       sync.Mutex
	statuses []int
	states   []gobreaker.State
}

func (o *recordingObserver) ObserveRequest(_ string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func (o *recordingObserver) ObserveBreakerState(_ string, state gobreaker.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithRateLimiter(newRateLimiter(time.Now, time.Millisecond)),
	}, opts...)
	return NewClient(ts, opts...)
}

func TestGetActivities(t *testing.T) {
	var gotQuery, gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("X-RateLimit-Usage", "10,200")
		w.Header().Set("X-RateLimit-Limit", "100,1000")
		_, _ = w.Write([]byte(`[{"id":1,"name":"Ride","type":"Ride","start_date":"2024-05-01T07:00:00Z","average_watts":210.5,"device_watts":true}]`))
	}))

	after := time.Unix(1700000000, 0)
	activities, err := c.GetActivities(context.Background(), after, 2, 30)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "after=1700000000&page=2&per_page=30", gotQuery)
	assert.True(t, activities[0].HasPower())
	assert.InDelta(t, 210.5, activities[0].AverageWatts, 1e-9)

	short, daily := c.RateLimitStatus()
	assert.Equal(t, 90, short)
	assert.Equal(t, 800, daily)
}

func TestGetAllActivitiesPaginates(t *testing.T) {
	pages := map[string]string{
		"1": `[{"id":1},{"id":2}]`,
		"2": `[{"id":3}]`,
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pages[r.URL.Query().Get("page")]))
	}))

	var progress []int
	all, err := c.GetAllActivities(context.Background(), time.Time{}, 2, func(n int) { progress = append(progress, n) })
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, []int{2, 3}, progress)
}

func TestGetActivityStreams(t *testing.T) {
	var gotPath, gotKeys string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKeys = r.URL.Query().Get("keys")
		_, _ = w.Write([]byte(`{
			"time": {"data": [0, 1, 2]},
			"watts": {"data": [200, null, 210]},
			"heartrate": {"data": [140, 141, 142]}
		}`))
	}))

	streams, err := c.GetActivityStreams(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "/activities/42/streams", gotPath)
	assert.Equal(t, StreamKeys, gotKeys)
	assert.Equal(t, 3, streams.Len())
	assert.True(t, streams.HasWatts())
	assert.True(t, streams.HasHeartrate())
	assert.Nil(t, streams.Watts.Data[1])
	assert.InDelta(t, 210, *streams.Watts.Data[2], 1e-9)
}

func TestAPIError(t *testing.T) {
	obs := &recordingObserver{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}), WithObserver(obs))

	_, err := c.GetActivityStreams(context.Background(), 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.False(t, apiErr.Temporary())
	assert.Equal(t, []int{http.StatusNotFound}, obs.statuses)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	obs := &recordingObserver{}
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}), WithObserver(obs), WithBreaker(2, time.Minute))

	for range 2 {
		_, err := c.GetAthlete(context.Background())
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
	}
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())

	_, err := c.GetAthlete(context.Background())
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, 2, calls, "open circuit short-circuits the request")
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, obs.states)
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), WithBreaker(1, time.Minute))

	for range 3 {
		_, err := c.GetAthlete(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState())
}
