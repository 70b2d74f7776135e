package service

import (
	"math"

	"powerscore/internal/store"
	"powerscore/internal/strava"
)

// StreamSummary holds coverage and aggregate values of a stored stream
type StreamSummary struct {
	Samples          int
	PowerSamples     int
	HeartRateSamples int
	AvgPower         float64
	MaxPower         float64
	AvgHeartrate     float64
	DurationSeconds  int
}

// PowerCoverage is the fraction of samples carrying a power reading
func (s StreamSummary) PowerCoverage() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.PowerSamples) / float64(s.Samples)
}

// HeartRateCoverage is the fraction of samples carrying a heart rate reading
func (s StreamSummary) HeartRateCoverage() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.HeartRateSamples) / float64(s.Samples)
}

// SummarizeStream aggregates power and heart rate over stream points
func SummarizeStream(points []store.StreamPoint) StreamSummary {
	sum := StreamSummary{Samples: len(points)}
	var powerTotal, hrTotal float64
	for _, p := range points {
		if p.Watts != nil {
			powerTotal += *p.Watts
			sum.PowerSamples++
			sum.MaxPower = math.Max(sum.MaxPower, *p.Watts)
		}
		if p.Heartrate != nil {
			hrTotal += *p.Heartrate
			sum.HeartRateSamples++
		}
	}
	if sum.PowerSamples > 0 {
		sum.AvgPower = powerTotal / float64(sum.PowerSamples)
	}
	if sum.HeartRateSamples > 0 {
		sum.AvgHeartrate = hrTotal / float64(sum.HeartRateSamples)
	}
	if n := len(points); n > 0 {
		sum.DurationSeconds = points[n-1].TimeOffset
	}
	return sum
}

// minuteAverages buckets a stream channel into one mean per minute of offset
func minuteAverages(points []store.StreamPoint, value func(store.StreamPoint) *float64) []float64 {
	if len(points) == 0 {
		return nil
	}
	buckets := points[len(points)-1].TimeOffset/60 + 1
	sums := make([]float64, buckets)
	counts := make([]int, buckets)
	for _, p := range points {
		v := value(p)
		if v == nil || p.TimeOffset < 0 {
			continue
		}
		i := p.TimeOffset / 60
		sums[i] += *v
		counts[i]++
	}
	for i := range sums {
		if counts[i] > 0 {
			sums[i] /= float64(counts[i])
		}
	}
	return sums
}

// convertActivity converts a Strava API activity to a store activity
func convertActivity(a strava.Activity) *store.Activity {
	activity := &store.Activity{
		ID:                 a.ID,
		AthleteID:          a.Athlete.ID,
		Name:               a.Name,
		Type:               a.Type,
		Source:             store.SourceStrava,
		StartDate:          a.StartDate,
		Distance:           a.Distance,
		MovingTime:         a.MovingTime,
		ElapsedTime:        a.ElapsedTime,
		TotalElevationGain: a.TotalElevationGain,
		DeviceWatts:        a.DeviceWatts,
		HasHeartrate:       a.HasHeartrate,
	}

	if a.AverageWatts > 0 {
		activity.AverageWatts = &a.AverageWatts
	}
	if a.WeightedAverageWatts > 0 {
		activity.WeightedAverageWatts = &a.WeightedAverageWatts
	}
	if a.AverageHeartrate > 0 {
		activity.AverageHeartrate = &a.AverageHeartrate
	}
	if a.MaxHeartrate > 0 {
		activity.MaxHeartrate = &a.MaxHeartrate
	}

	return activity
}

// convertStreams converts Strava API streams to store stream points
func convertStreams(activityID int64, s *strava.Streams) []store.StreamPoint {
	if s == nil || s.Time == nil {
		return nil
	}

	length := len(s.Time.Data)
	points := make([]store.StreamPoint, length)

	for i := 0; i < length; i++ {
		p := store.StreamPoint{
			ActivityID: activityID,
			TimeOffset: s.Time.Data[i],
		}

		if s.Watts != nil && i < len(s.Watts.Data) && s.Watts.Data[i] != nil {
			w := *s.Watts.Data[i]
			p.Watts = &w
		}

		if s.Heartrate != nil && i < len(s.Heartrate.Data) {
			hr := s.Heartrate.Data[i]
			p.Heartrate = &hr
		}

		if s.Cadence != nil && i < len(s.Cadence.Data) {
			cad := s.Cadence.Data[i]
			p.Cadence = &cad
		}

		if s.Distance != nil && i < len(s.Distance.Data) {
			dist := s.Distance.Data[i]
			p.Distance = &dist
		}

		if s.Altitude != nil && i < len(s.Altitude.Data) {
			alt := s.Altitude.Data[i]
			p.Altitude = &alt
		}

		points[i] = p
	}

	return points
}
