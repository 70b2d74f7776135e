package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerscore/internal/metrics"
	"powerscore/internal/score"
	"powerscore/internal/store"
	"powerscore/internal/strava"
)

func f64(v float64) *float64 { return &v }

func testProfile() score.Profile {
	return score.Profile{WeightKg: 70, FTPWatts: 250, HRMax: 185, HRRest: 50, Age: 30}
}

func steadyPoints(seconds int, watts float64) []store.StreamPoint {
	points := make([]store.StreamPoint, 0, seconds+1)
	for t := 0; t <= seconds; t++ {
		points = append(points, store.StreamPoint{TimeOffset: t, Watts: f64(watts), Heartrate: f64(150)})
	}
	return points
}

// seedRide stores a synced ride with a steady power stream
func seedRide(t *testing.T, st *store.Store, id int64, start time.Time, seconds int, watts float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertActivity(ctx, &store.Activity{
		ID:            id,
		Name:          "Ride",
		Type:          "Ride",
		StartDate:     start,
		MovingTime:    seconds,
		ElapsedTime:   seconds,
		AverageWatts:  f64(watts),
		DeviceWatts:   true,
		StreamsSynced: true,
	}))
	require.NoError(t, st.SaveStreams(ctx, id, steadyPoints(seconds, watts)))
}

func newScorer(st *store.Store, opts ...ScoreOption) *ScoreService {
	return NewScoreService(st, score.DefaultConfig(), testProfile(), opts...)
}

func TestScoreActivity(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	start := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	seedRide(t, st, 1, start, 3600, 245)

	s := newScorer(st)
	rec, err := s.ScoreActivity(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.InDelta(t, 74.35, rec.FinalScore, 0.1)
	assert.Equal(t, score.RankIntermediate, rec.Rank)
	assert.Equal(t, score.TierGreat, rec.QualityTier)
	assert.True(t, start.Equal(rec.ActivityDate))

	stored, err := st.GetLatestScore(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, stored.ID)

	_, err = s.ScoreActivity(ctx, 404)
	assert.ErrorIs(t, err, store.ErrActivityNotFound)
}

func TestScoreActivityRejected(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	seedRide(t, st, 1, time.Now(), 300, 200)

	m := metrics.NewManager()
	_, err := newScorer(st, WithMetrics(m)).ScoreActivity(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, score.ErrInsufficientSample)
	assert.True(t, score.IsValidationError(err))

	_, err = st.GetLatestScore(ctx, 1)
	assert.ErrorIs(t, err, store.ErrScoreNotFound, "rejected runs are not stored")
}

func TestProfileResolution(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	s := newScorer(st, WithDevelopers([]int64{7}))

	p, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, testProfile(), p, "falls back to the configured profile")

	require.NoError(t, st.SaveProfile(ctx, &store.Profile{WeightKg: 80, FTPWatts: 300, HRMax: 190, HRRest: 45, Age: 40}))
	require.NoError(t, st.SaveAuth(ctx, &store.Auth{AthleteID: 7, AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now()}))

	p, err = s.Profile(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 80, p.WeightKg, 1e-9)
	assert.True(t, p.Developer)

	require.NoError(t, st.SaveAuth(ctx, &store.Auth{AthleteID: 8, AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now()}))
	p, err = s.Profile(ctx)
	require.NoError(t, err)
	assert.False(t, p.Developer)
}

func TestScoreStreamDoesNotPersist(t *testing.T) {
	st := store.NewTestStore(t)
	s := newScorer(st)

	b, err := s.ScoreStream(store.ToScoreStream(steadyPoints(3600, 245)), testProfile())
	require.NoError(t, err)
	assert.Equal(t, score.EngineVersion, b.EngineVersion)

	history, err := st.ListLatestScores(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestScoreBatch(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	day := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	seedRide(t, st, 1, day, 1800, 200)
	seedRide(t, st, 2, day.AddDate(0, 0, 1), 2400, 230)
	seedRide(t, st, 3, day.AddDate(0, 0, 2), 3600, 260)
	seedRide(t, st, 4, day.AddDate(0, 0, 3), 120, 300)

	var progress []int
	result, err := newScorer(st).ScoreBatch(ctx, []int64{1, 2, 3, 4}, 3, func(n int) { progress = append(progress, n) })
	require.NoError(t, err)

	require.Len(t, result.Scored, 3)
	assert.Equal(t, int64(3), result.Scored[0].ActivityID, "newest first")
	require.Len(t, result.Rejected, 1)
	assert.ErrorIs(t, result.Rejected[4], score.ErrInsufficientSample)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
}

func TestScoreBatchAbortsOnStorageError(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	seedRide(t, st, 1, time.Now(), 1800, 200)

	_, err := newScorer(st).ScoreBatch(ctx, []int64{1, 404}, 1, nil)
	assert.ErrorIs(t, err, store.ErrActivityNotFound)
}

type fakeProvider struct {
	activities []strava.Activity
	streams    map[int64]*strava.Streams
	afters     []time.Time
}

func (f *fakeProvider) GetActivities(_ context.Context, after time.Time, page, perPage int) ([]strava.Activity, error) {
	f.afters = append(f.afters, after)
	var out []strava.Activity
	for _, a := range f.activities {
		if a.StartDate.After(after) {
			out = append(out, a)
		}
	}
	lo := (page - 1) * perPage
	if lo >= len(out) {
		return nil, nil
	}
	return out[lo:min(lo+perPage, len(out))], nil
}

func (f *fakeProvider) GetActivityStreams(_ context.Context, id int64) (*strava.Streams, error) {
	s, ok := f.streams[id]
	if !ok {
		return nil, &strava.APIError{StatusCode: 404, Body: "not found"}
	}
	return s, nil
}

func apiStreams(seconds int, watts float64) *strava.Streams {
	s := &strava.Streams{
		Time:      &strava.StreamData[int]{},
		Watts:     &strava.StreamData[*float64]{},
		Heartrate: &strava.StreamData[float64]{},
	}
	for t := 0; t <= seconds; t++ {
		s.Time.Data = append(s.Time.Data, t)
		s.Watts.Data = append(s.Watts.Data, f64(watts))
		s.Heartrate.Data = append(s.Heartrate.Data, 150)
	}
	return s
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	st := store.NewTestStore(t)
	day := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)

	provider := &fakeProvider{
		activities: []strava.Activity{
			{ID: 1, Name: "Hour", Type: "Ride", StartDate: day, DeviceWatts: true, AverageWatts: 245},
			{ID: 2, Name: "Commute", Type: "Ride", StartDate: day.Add(time.Hour)},
			{ID: 3, Name: "Sprint", Type: "Ride", StartDate: day.Add(2 * time.Hour), AverageWatts: 400},
			{ID: 4, Name: "No streams", Type: "Ride", StartDate: day.Add(3 * time.Hour), DeviceWatts: true},
		},
		streams: map[int64]*strava.Streams{
			1: apiStreams(3600, 245),
			3: apiStreams(60, 400),
		},
	}

	sync := NewSyncService(provider, st, newScorer(st), SyncOptions{PageSize: 2, Concurrency: 2})

	progress := make(chan SyncProgress, 64)
	phases := make(map[string]bool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			phases[p.Phase] = true
		}
	}()

	result, err := sync.SyncAll(ctx, progress)
	require.NoError(t, err)
	<-done

	assert.Equal(t, 4, result.ActivitiesFetched)
	assert.Equal(t, 3, result.ActivitiesStored, "rides without power are skipped")
	assert.Equal(t, 2, result.StreamsFetched)
	assert.Equal(t, 1, result.ScoresComputed)
	assert.Equal(t, 1, result.ScoresRejected)
	require.Len(t, result.Errors, 2)
	var apiErr *strava.APIError
	assert.True(t, errors.As(result.Errors[0], &apiErr), "stream failures are collected")
	assert.ErrorIs(t, result.Errors[1], score.ErrInsufficientSample)
	assert.True(t, phases[PhaseActivities] && phases[PhaseStreams] && phases[PhaseScores])

	_, err = st.GetActivity(ctx, 2)
	assert.ErrorIs(t, err, store.ErrActivityNotFound)

	rec, err := st.GetLatestScore(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, score.RankIntermediate, rec.Rank)

	state, err := st.GetSyncState(ctx, store.SyncKeyLastActivity)
	require.NoError(t, err)
	assert.Equal(t, day.Add(3*time.Hour).Format(time.RFC3339), state)

	// A second sync starts after the newest activity and scores nothing new.
	result, err = sync.SyncAll(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, result.ActivitiesFetched)
	assert.Zero(t, result.ScoresComputed)
	assert.True(t, day.Add(3*time.Hour).Equal(provider.afters[len(provider.afters)-1]))

	_, _, ok := sync.RateLimitStatus()
	assert.False(t, ok)
}

func TestConvertStreams(t *testing.T) {
	s := &strava.Streams{
		Time:     &strava.StreamData[int]{Data: []int{0, 1, 2}},
		Watts:    &strava.StreamData[*float64]{Data: []*float64{f64(100), nil}},
		Distance: &strava.StreamData[float64]{Data: []float64{0, 5, 10}},
	}
	points := convertStreams(9, s)
	require.Len(t, points, 3)
	assert.Equal(t, int64(9), points[2].ActivityID)
	assert.Nil(t, points[1].Watts)
	assert.Nil(t, points[2].Watts, "short streams leave gaps")
	assert.Nil(t, points[0].Heartrate)
	assert.InDelta(t, 10, *points[2].Distance, 1e-9)

	assert.Nil(t, convertStreams(1, nil))
}

func TestConvertActivity(t *testing.T) {
	a := convertActivity(strava.Activity{ID: 5, Name: "Ride", AverageWatts: 200, DeviceWatts: true})
	assert.Equal(t, store.SourceStrava, a.Source)
	assert.InDelta(t, 200, *a.AverageWatts, 1e-9)
	assert.Nil(t, a.WeightedAverageWatts)
	assert.Nil(t, a.AverageHeartrate)
}

func TestSummarizeStream(t *testing.T) {
	points := []store.StreamPoint{
		{TimeOffset: 0, Watts: f64(100), Heartrate: f64(120)},
		{TimeOffset: 1, Watts: f64(300)},
		{TimeOffset: 2},
		{TimeOffset: 4, Heartrate: f64(140)},
	}
	s := SummarizeStream(points)
	assert.Equal(t, 4, s.Samples)
	assert.InDelta(t, 200, s.AvgPower, 1e-9)
	assert.InDelta(t, 300, s.MaxPower, 1e-9)
	assert.InDelta(t, 130, s.AvgHeartrate, 1e-9)
	assert.InDelta(t, 0.5, s.PowerCoverage(), 1e-9)
	assert.InDelta(t, 0.5, s.HeartRateCoverage(), 1e-9)
	assert.Equal(t, 4, s.DurationSeconds)

	assert.Zero(t, SummarizeStream(nil).PowerCoverage())
}
