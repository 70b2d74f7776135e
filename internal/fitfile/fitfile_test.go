package fitfile

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"

	"powerscore/internal/store"
)

func record(ts time.Time, power uint16, hr uint8) *fit.RecordMsg {
	r := fit.NewRecordMsg()
	r.Timestamp = ts
	r.Power = power
	r.HeartRate = hr
	return r
}

func TestFromActivityFile(t *testing.T) {
	start := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	af := &fit.ActivityFile{
		Records: []*fit.RecordMsg{
			record(start, 200, 130),
			record(start.Add(500*time.Millisecond), 999, 1), // same second, dropped
			record(start.Add(time.Second), math.MaxUint16, 131),
			record(start.Add(2*time.Second), 220, math.MaxUint8),
			nil,
		},
	}

	a, err := FromActivityFile(af)
	require.NoError(t, err)
	require.Len(t, a.Points, 3)

	assert.Equal(t, []int{0, 1, 2}, []int{a.Points[0].TimeOffset, a.Points[1].TimeOffset, a.Points[2].TimeOffset})
	assert.InDelta(t, 200, *a.Points[0].Watts, 1e-9)
	assert.Nil(t, a.Points[1].Watts, "invalid power is a gap")
	assert.Nil(t, a.Points[2].Heartrate)

	s := a.Summary
	assert.Equal(t, -start.Unix(), s.ID)
	assert.Equal(t, store.SourceFIT, s.Source)
	assert.True(t, start.Equal(s.StartDate))
	assert.True(t, s.HasPower())
	assert.True(t, s.StreamsSynced)
	assert.InDelta(t, 210, *s.AverageWatts, 1e-9)
	assert.InDelta(t, 131, *s.MaxHeartrate, 1e-9)
	assert.Equal(t, 2, s.ElapsedTime)

	stream := store.ToScoreStream(a.Points)
	assert.Equal(t, 2, stream.DurationSeconds)
}

func TestFromActivityFileSession(t *testing.T) {
	start := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	session := fit.NewSessionMsg()
	session.Sport = fit.SportCycling
	session.AvgPower = 240
	session.NormalizedPower = 255
	session.TotalAscent = 410

	a, err := FromActivityFile(&fit.ActivityFile{
		Records:  []*fit.RecordMsg{record(start, 200, 130), record(start.Add(time.Second), 210, 131)},
		Sessions: []*fit.SessionMsg{session},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ride", a.Summary.Type)
	assert.InDelta(t, 240, *a.Summary.AverageWatts, 1e-9)
	assert.InDelta(t, 255, *a.Summary.WeightedAverageWatts, 1e-9)
	assert.InDelta(t, 410, a.Summary.TotalElevationGain, 1e-9)
}

func TestFromActivityFileNoRecords(t *testing.T) {
	_, err := FromActivityFile(&fit.ActivityFile{})
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not a fit file")))
	assert.Error(t, err)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(t.TempDir() + "/missing.fit")
	assert.Error(t, err)
}
