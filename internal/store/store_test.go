package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerscore/internal/score"
)

func f64(v float64) *float64 { return &v }

func testActivity(id int64, start time.Time) *Activity {
	return &Activity{
		ID:           id,
		AthleteID:    99,
		Name:         "Morning Ride",
		Type:         "Ride",
		StartDate:    start,
		Distance:     40000,
		MovingTime:   3600,
		ElapsedTime:  3700,
		AverageWatts: f64(210),
		DeviceWatts:  true,
		HasHeartrate: true,
	}
}

func testScore(activityID int64, final float64, scoredAt time.Time) *ScoreRecord {
	return &ScoreRecord{
		ActivityID: activityID,
		ScoredAt:   scoredAt,
		Breakdown: score.Breakdown{
			FinalScore:    final,
			Rank:          score.RankAdvanced,
			QualityTier:   score.ClassifyQuality(final),
			EngineVersion: score.EngineVersion,
		},
	}
}

func TestAuth(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)

	_, err := s.GetAuth(ctx)
	assert.True(t, errors.Is(err, ErrNoAuth))
	assert.True(t, errors.Is(s.UpdateTokens(ctx, "a", "r", time.Now()), ErrNoAuth))

	expires := time.Unix(1700000000, 0)
	require.NoError(t, s.SaveAuth(ctx, &Auth{AthleteID: 7, AccessToken: "a1", RefreshToken: "r1", ExpiresAt: expires}))
	require.NoError(t, s.UpdateTokens(ctx, "a2", "r2", expires.Add(time.Hour)))

	got, err := s.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.AthleteID)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, "r2", got.RefreshToken)
	assert.Equal(t, expires.Add(time.Hour).Unix(), got.ExpiresAt.Unix())
}

func TestActivities(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)
	day := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)

	_, err := s.GetActivity(ctx, 1)
	assert.True(t, errors.Is(err, ErrActivityNotFound))

	noPower := testActivity(3, day.Add(48*time.Hour))
	noPower.DeviceWatts = false
	noPower.AverageWatts = nil

	for _, a := range []*Activity{testActivity(1, day), testActivity(2, day.Add(24*time.Hour)), noPower} {
		require.NoError(t, s.UpsertActivity(ctx, a))
	}

	got, err := s.GetActivity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceStrava, got.Source)
	assert.True(t, day.Equal(got.StartDate))
	assert.True(t, got.HasPower())
	assert.InDelta(t, 210, *got.AverageWatts, 1e-9)
	assert.Nil(t, got.WeightedAverageWatts)

	list, err := s.ListActivities(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(3), list[0].ID)

	count, err := s.CountActivities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	need, err := s.GetActivitiesNeedingStreams(ctx, 10)
	require.NoError(t, err)
	require.Len(t, need, 2, "activities without power are skipped")

	require.NoError(t, s.MarkStreamsSynced(ctx, 2))
	assert.True(t, errors.Is(s.MarkStreamsSynced(ctx, 404), ErrActivityNotFound))

	// Re-upserting keeps the synced flag.
	a2 := testActivity(2, day.Add(24*time.Hour))
	a2.Name = "Renamed"
	require.NoError(t, s.UpsertActivity(ctx, a2))
	got, err = s.GetActivity(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.StreamsSynced)

	need, err = s.GetActivitiesNeedingStreams(ctx, 10)
	require.NoError(t, err)
	require.Len(t, need, 1)
	assert.Equal(t, int64(1), need[0].ID)
}

func TestStreams(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)
	require.NoError(t, s.UpsertActivity(ctx, testActivity(1, time.Now())))

	points := []StreamPoint{
		{TimeOffset: 2, Watts: f64(220), Heartrate: f64(141)},
		{TimeOffset: 0, Watts: f64(200)},
		{TimeOffset: 1, Heartrate: f64(140)},
	}
	require.NoError(t, s.SaveStreams(ctx, 1, points))

	got, err := s.GetStreams(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].TimeOffset)
	assert.Nil(t, got[1].Watts)
	assert.InDelta(t, 141, *got[2].Heartrate, 1e-9)
	assert.Equal(t, int64(1), got[0].ActivityID)

	// Saving again replaces the previous points.
	require.NoError(t, s.SaveStreams(ctx, 1, points[:1]))
	count, err := s.GetStreamCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)

	_, err := s.GetProfile(ctx)
	assert.True(t, errors.Is(err, ErrNoProfile))

	require.NoError(t, s.SaveProfile(ctx, &Profile{WeightKg: 72, FTPWatts: 260, HRMax: 190, HRRest: 48, Age: 41}))
	require.NoError(t, s.SaveProfile(ctx, &Profile{WeightKg: 71, FTPWatts: 265, HRMax: 190, HRRest: 48, Age: 41}))

	got, err := s.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, score.Profile{WeightKg: 71, FTPWatts: 265, HRMax: 190, HRRest: 48, Age: 41}, got.ScoreProfile())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestScores(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)
	day := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []int64{1, 2, 3} {
		a := testActivity(id, day.AddDate(0, 0, i))
		a.StreamsSynced = true
		require.NoError(t, s.UpsertActivity(ctx, a))
	}

	_, err := s.GetLatestScore(ctx, 1)
	assert.True(t, errors.Is(err, ErrScoreNotFound))
	_, err = s.GetBestScore(ctx)
	assert.True(t, errors.Is(err, ErrScoreNotFound))

	first := testScore(1, 90, now)
	first.ActivityDate = day
	require.NoError(t, s.SaveScore(ctx, first))
	assert.NotEmpty(t, first.ID)

	// A rescore of activity 1 lowers its latest score.
	rescore := testScore(1, 50, now.Add(time.Hour))
	rescore.ActivityDate = day
	require.NoError(t, s.SaveScore(ctx, rescore))

	second := testScore(2, 70, now)
	second.ActivityDate = day.AddDate(0, 0, 1)
	require.NoError(t, s.SaveScore(ctx, second))

	latest, err := s.GetLatestScore(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, rescore.ID, latest.ID)
	assert.Equal(t, 50.0, latest.FinalScore)
	assert.Equal(t, score.RankAdvanced, latest.Rank)

	history, err := s.ListScoreHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, rescore.ID, history[0].ID)

	best, err := s.GetBestScore(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), best.ActivityID, "superseded runs do not count")

	recent, err := s.ListLatestScores(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(2), recent[0].ActivityID)

	since, err := s.ListLatestScoresSince(ctx, day.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, int64(2), since[0].ActivityID)

	byID, err := s.GetLatestScoresFor(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, 50.0, byID[1].FinalScore)

	scored, err := s.ListScoredActivities(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, scored, 3)
	assert.Nil(t, scored[0].Score)
	assert.Equal(t, 70.0, scored[1].Score.FinalScore)

	need, err := s.GetActivitiesNeedingScores(ctx, score.EngineVersion)
	require.NoError(t, err)
	require.Len(t, need, 1)
	assert.Equal(t, int64(3), need[0].ID)

	need, err = s.GetActivitiesNeedingScores(ctx, "next")
	require.NoError(t, err)
	assert.Len(t, need, 3)
}

func TestDeleteActivityCascades(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)

	require.NoError(t, s.UpsertActivity(ctx, testActivity(1, time.Now())))
	require.NoError(t, s.SaveStreams(ctx, 1, []StreamPoint{{TimeOffset: 0, Watts: f64(100)}}))
	require.NoError(t, s.SaveScore(ctx, testScore(1, 60, time.Now())))

	require.NoError(t, s.DeleteActivity(ctx, 1))
	assert.True(t, errors.Is(s.DeleteActivity(ctx, 1), ErrActivityNotFound))

	count, err := s.GetStreamCount(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = s.GetLatestScore(ctx, 1)
	assert.True(t, errors.Is(err, ErrScoreNotFound))
}

func TestSyncState(t *testing.T) {
	ctx := context.Background()
	s := NewTestStore(t)

	v, err := s.GetSyncState(ctx, SyncKeyLastActivity)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetSyncState(ctx, SyncKeyLastActivity, "100"))
	require.NoError(t, s.SetSyncState(ctx, SyncKeyLastActivity, "200"))

	v, err = s.GetSyncState(ctx, SyncKeyLastActivity)
	require.NoError(t, err)
	assert.Equal(t, "200", v)
}

func TestToScoreStream(t *testing.T) {
	points := []StreamPoint{
		{TimeOffset: 0, Watts: f64(200), Distance: f64(0)},
		{TimeOffset: 1, Heartrate: f64(120), Distance: f64(8)},
		{TimeOffset: 2, Watts: f64(210)},
	}
	s := ToScoreStream(points)
	require.Len(t, s.Samples, 3)
	assert.Equal(t, 2, s.DurationSeconds)
	assert.InDelta(t, 8, s.DistanceMeters, 1e-9)
	assert.Nil(t, s.Samples[1].Power)
	assert.InDelta(t, 120, *s.Samples[1].HeartRate, 1e-9)

	assert.Zero(t, ToScoreStream(nil).DurationSeconds)
}
