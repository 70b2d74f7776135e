// Package fitfile imports activities recorded as Garmin FIT files.
package fitfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/tormoder/fit"

	"powerscore/internal/store"
)

// ErrNoRecords is returned for activity files without any timestamped record
var ErrNoRecords = errors.New("fit file has no records")

// Activity is a decoded FIT activity in storage form
type Activity struct {
	Summary store.Activity
	Points  []store.StreamPoint
}

// ReadFile decodes the FIT activity at path
func ReadFile(path string) (*Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode decodes a FIT activity file
func Decode(r io.Reader) (*Activity, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding fit: %w", err)
	}
	af, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("fit file is not an activity: %w", err)
	}
	return FromActivityFile(af)
}

// FromActivityFile converts decoded FIT messages into an activity and its stream.
// Imported activities get negative ids derived from the start time so they
// never collide with provider ids.
func FromActivityFile(af *fit.ActivityFile) (*Activity, error) {
	points, start := convertRecords(af.Records)
	if len(points) == 0 {
		return nil, ErrNoRecords
	}

	a := store.Activity{
		ID:            -start.Unix(),
		Name:          "Imported ride",
		Type:          "Ride",
		Source:        store.SourceFIT,
		StartDate:     start,
		ElapsedTime:   points[len(points)-1].TimeOffset,
		MovingTime:    points[len(points)-1].TimeOffset,
		StreamsSynced: true,
	}
	summarizePoints(&a, points)

	if len(af.Sessions) > 0 && af.Sessions[0] != nil {
		applySession(&a, af.Sessions[0])
	}

	return &Activity{Summary: a, Points: points}, nil
}

func convertRecords(records []*fit.RecordMsg) ([]store.StreamPoint, time.Time) {
	var start time.Time
	points := make([]store.StreamPoint, 0, len(records))

	for _, rec := range records {
		if rec == nil || rec.Timestamp.IsZero() {
			continue
		}
		if start.IsZero() {
			start = rec.Timestamp.UTC()
		}

		offset := int(rec.Timestamp.Sub(start).Seconds())
		// Sub-second recording can repeat an offset; keep the first.
		if n := len(points); offset < 0 || n > 0 && offset <= points[n-1].TimeOffset {
			continue
		}

		p := store.StreamPoint{TimeOffset: offset}
		if rec.Power != math.MaxUint16 {
			p.Watts = ptr(float64(rec.Power))
		}
		if rec.HeartRate != math.MaxUint8 && rec.HeartRate != 0 {
			p.Heartrate = ptr(float64(rec.HeartRate))
		}
		if rec.Cadence != math.MaxUint8 {
			p.Cadence = ptr(float64(rec.Cadence))
		}
		if d := rec.GetDistanceScaled(); !math.IsNaN(d) {
			p.Distance = ptr(d)
		}
		if alt := rec.GetAltitudeScaled(); !math.IsNaN(alt) {
			p.Altitude = ptr(alt)
		}
		points = append(points, p)
	}
	return points, start
}

// summarizePoints fills summary fields from the stream itself
func summarizePoints(a *store.Activity, points []store.StreamPoint) {
	var powerSum, hrSum float64
	var powerCount, hrCount int
	var maxHR float64

	for _, p := range points {
		if p.Watts != nil {
			powerSum += *p.Watts
			powerCount++
		}
		if p.Heartrate != nil {
			hrSum += *p.Heartrate
			hrCount++
			maxHR = math.Max(maxHR, *p.Heartrate)
		}
		if p.Distance != nil {
			a.Distance = *p.Distance
		}
	}

	if powerCount > 0 {
		a.DeviceWatts = true
		a.AverageWatts = ptr(powerSum / float64(powerCount))
	}
	if hrCount > 0 {
		a.HasHeartrate = true
		a.AverageHeartrate = ptr(hrSum / float64(hrCount))
		a.MaxHeartrate = ptr(maxHR)
	}
}

// applySession prefers the device's own session totals where present
func applySession(a *store.Activity, s *fit.SessionMsg) {
	if s.Sport != fit.SportCycling && s.Sport != fit.SportInvalid {
		a.Type = s.Sport.String()
		a.Name = "Imported " + s.Sport.String()
	}
	if v := s.GetTotalTimerTimeScaled(); !math.IsNaN(v) && v > 0 {
		a.MovingTime = int(v)
	}
	if v := s.GetTotalElapsedTimeScaled(); !math.IsNaN(v) && v > 0 {
		a.ElapsedTime = int(v)
	}
	if v := s.GetTotalDistanceScaled(); !math.IsNaN(v) && v > 0 {
		a.Distance = v
	}
	if s.TotalAscent != math.MaxUint16 {
		a.TotalElevationGain = float64(s.TotalAscent)
	}
	if s.AvgPower != math.MaxUint16 && s.AvgPower > 0 {
		a.AverageWatts = ptr(float64(s.AvgPower))
	}
	if s.NormalizedPower != math.MaxUint16 && s.NormalizedPower > 0 {
		a.WeightedAverageWatts = ptr(float64(s.NormalizedPower))
	}
}

func ptr(v float64) *float64 { return &v }
