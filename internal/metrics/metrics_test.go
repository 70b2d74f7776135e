package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerscore/internal/score"
)

func TestObserveScore(t *testing.T) {
	m := NewManager()
	m.ObserveScore(score.Breakdown{FinalScore: 74.3, Rank: score.RankIntermediate, QualityTier: score.TierGreat}, time.Millisecond)
	m.ObserveScore(score.Breakdown{FinalScore: 91, Rank: score.RankElite, QualityTier: score.TierLegendary}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activitiesScored.WithLabelValues("INTERMEDIATE", "GREAT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activitiesScored.WithLabelValues("ELITE", "LEGENDARY")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.finalScore))
}

func TestObserveFailure(t *testing.T) {
	m := NewManager()
	m.ObserveFailure(&score.InsufficientSampleError{DurationSeconds: 60, MinimumSeconds: 600})
	m.ObserveFailure(&score.MissingDataError{Reason: "no power"})
	m.ObserveFailure(errors.New("disk"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scoringFailures.WithLabelValues("insufficient_sample")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scoringFailures.WithLabelValues("missing_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scoringFailures.WithLabelValues("internal")))
}

func TestProviderMetrics(t *testing.T) {
	m := NewManager(WithNamespace("test"))
	m.ObserveRequest("streams", 200, 20*time.Millisecond)
	m.ObserveRequest("streams", 200, 30*time.Millisecond)
	m.ObserveRequest("activities", 0, time.Second)
	m.ObserveBreakerState("strava", gobreaker.StateOpen)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.providerRequests.WithLabelValues("streams", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequests.WithLabelValues("activities", "0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState.WithLabelValues("strava")))
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.ObserveScore(score.Breakdown{}, time.Second)
		m.ObserveFailure(errors.New("x"))
		m.ObserveRequest("x", 500, time.Second)
		m.ObserveBreakerState("x", gobreaker.StateClosed)
	})
}

func TestHandler(t *testing.T) {
	m := NewManager()
	m.ObserveScore(score.Breakdown{FinalScore: 50, Rank: score.RankRookie, QualityTier: score.TierOK}, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `powerscore_engine_activities_scored_total{rank="ROOKIE",tier="OK"} 1`)
}
