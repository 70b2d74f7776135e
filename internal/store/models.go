package store

import (
	"time"

	"powerscore/internal/score"
)

// Activity sources
const (
	SourceStrava = "strava"
	SourceFIT    = "fit"
)

// Auth represents OAuth tokens for Strava API access
type Auth struct {
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Activity represents an activity summary
type Activity struct {
	ID                   int64
	AthleteID            int64
	Name                 string
	Type                 string
	Source               string
	StartDate            time.Time
	Distance             float64 // meters
	MovingTime           int     // seconds
	ElapsedTime          int     // seconds
	TotalElevationGain   float64
	AverageWatts         *float64
	WeightedAverageWatts *float64
	DeviceWatts          bool
	AverageHeartrate     *float64
	MaxHeartrate         *float64
	HasHeartrate         bool
	StreamsSynced        bool
}

// HasPower reports whether the activity was recorded with power data
func (a *Activity) HasPower() bool {
	return a.DeviceWatts || (a.AverageWatts != nil && *a.AverageWatts > 0)
}

type activityRow struct {
	ID                   int64    `db:"id"`
	AthleteID            int64    `db:"athlete_id"`
	Name                 string   `db:"name"`
	Type                 string   `db:"type"`
	Source               string   `db:"source"`
	StartDate            int64    `db:"start_date"`
	Distance             float64  `db:"distance"`
	MovingTime           int      `db:"moving_time"`
	ElapsedTime          int      `db:"elapsed_time"`
	TotalElevationGain   float64  `db:"total_elevation_gain"`
	AverageWatts         *float64 `db:"average_watts"`
	WeightedAverageWatts *float64 `db:"weighted_average_watts"`
	DeviceWatts          bool     `db:"device_watts"`
	AverageHeartrate     *float64 `db:"average_heartrate"`
	MaxHeartrate         *float64 `db:"max_heartrate"`
	HasHeartrate         bool     `db:"has_heartrate"`
	StreamsSynced        bool     `db:"streams_synced"`
}

func (r activityRow) toActivity() Activity {
	return Activity{
		ID:                   r.ID,
		AthleteID:            r.AthleteID,
		Name:                 r.Name,
		Type:                 r.Type,
		Source:               r.Source,
		StartDate:            time.Unix(r.StartDate, 0).UTC(),
		Distance:             r.Distance,
		MovingTime:           r.MovingTime,
		ElapsedTime:          r.ElapsedTime,
		TotalElevationGain:   r.TotalElevationGain,
		AverageWatts:         r.AverageWatts,
		WeightedAverageWatts: r.WeightedAverageWatts,
		DeviceWatts:          r.DeviceWatts,
		AverageHeartrate:     r.AverageHeartrate,
		MaxHeartrate:         r.MaxHeartrate,
		HasHeartrate:         r.HasHeartrate,
		StreamsSynced:        r.StreamsSynced,
	}
}

// StreamPoint represents a single data point from activity streams
type StreamPoint struct {
	ActivityID int64    `db:"activity_id"`
	TimeOffset int      `db:"time_offset"` // seconds
	Watts      *float64 `db:"watts"`
	Heartrate  *float64 `db:"heartrate"` // bpm
	Cadence    *float64 `db:"cadence"`   // rpm
	Distance   *float64 `db:"distance"`  // cumulative meters
	Altitude   *float64 `db:"altitude"`  // meters
}

// Profile is the stored athlete profile
type Profile struct {
	WeightKg  float64
	FTPWatts  float64
	HRMax     float64
	HRRest    float64
	Age       int
	UpdatedAt time.Time
}

// ScoreProfile converts to the engine's profile type
func (p Profile) ScoreProfile() score.Profile {
	return score.Profile{
		WeightKg: p.WeightKg,
		FTPWatts: p.FTPWatts,
		HRMax:    p.HRMax,
		HRRest:   p.HRRest,
		Age:      p.Age,
	}
}

type profileRow struct {
	WeightKg  float64 `db:"weight_kg"`
	FTPWatts  float64 `db:"ftp_watts"`
	HRMax     float64 `db:"hr_max"`
	HRRest    float64 `db:"hr_rest"`
	Age       int     `db:"age"`
	UpdatedAt int64   `db:"updated_at"`
}

// ScoreRecord is one persisted engine run for an activity
type ScoreRecord struct {
	ID           string
	ActivityID   int64
	ScoredAt     time.Time
	ActivityDate time.Time
	score.Breakdown
}

type scoreRow struct {
	ID                 string  `db:"id"`
	ActivityID         int64   `db:"activity_id"`
	ScoredAt           int64   `db:"scored_at"`
	ActivityDate       int64   `db:"activity_date"`
	PowerScore         float64 `db:"power_score"`
	VolumeScore        float64 `db:"volume_score"`
	IntensityScore     float64 `db:"intensity_score"`
	DecouplingDrift    float64 `db:"decoupling_drift"`
	PenaltyApplied     float64 `db:"penalty_applied"`
	BaseScore          float64 `db:"base_score"`
	FinalScore         float64 `db:"final_score"`
	Rank               string  `db:"rank"`
	QualityTier        string  `db:"quality_tier"`
	NormalizedPower    float64 `db:"normalized_power"`
	WattsPerKg         float64 `db:"watts_per_kg"`
	IntensityFactor    float64 `db:"intensity_factor"`
	DurationMinutes    float64 `db:"duration_minutes"`
	HeartRateAvailable bool    `db:"heart_rate_available"`
	EngineVersion      string  `db:"engine_version"`
}

func (r scoreRow) toRecord() ScoreRecord {
	return ScoreRecord{
		ID:           r.ID,
		ActivityID:   r.ActivityID,
		ScoredAt:     time.Unix(r.ScoredAt, 0).UTC(),
		ActivityDate: time.Unix(r.ActivityDate, 0).UTC(),
		Breakdown: score.Breakdown{
			PowerScore:         r.PowerScore,
			VolumeScore:        r.VolumeScore,
			IntensityScore:     r.IntensityScore,
			DecouplingDrift:    r.DecouplingDrift,
			PenaltyApplied:     r.PenaltyApplied,
			FinalScore:         r.FinalScore,
			Rank:               score.Rank(r.Rank),
			QualityTier:        score.QualityTier(r.QualityTier),
			NormalizedPower:    r.NormalizedPower,
			WattsPerKg:         r.WattsPerKg,
			IntensityFactor:    r.IntensityFactor,
			DurationMinutes:    r.DurationMinutes,
			BaseScore:          r.BaseScore,
			HeartRateAvailable: r.HeartRateAvailable,
			EngineVersion:      r.EngineVersion,
		},
	}
}

// ScoredActivity pairs an activity with its latest score, if any
type ScoredActivity struct {
	Activity
	Score *ScoreRecord
}

// ToScoreStream converts stored stream points into the engine's input.
// Points must be ordered by time offset; the duration is the last offset.
func ToScoreStream(points []StreamPoint) score.Stream {
	stream := score.Stream{Samples: make([]score.Sample, len(points))}
	for i, p := range points {
		stream.Samples[i] = score.Sample{
			TimeOffset: p.TimeOffset,
			Power:      p.Watts,
			HeartRate:  p.Heartrate,
		}
		if p.Distance != nil {
			stream.DistanceMeters = *p.Distance
		}
	}
	if n := len(points); n > 0 {
		stream.DurationSeconds = points[n-1].TimeOffset
	}
	return stream
}
