package score

// Sample is a single point of workout telemetry
type Sample struct {
	TimeOffset int      `json:"time_offset"` // seconds from activity start
	Power      *float64 `json:"power,omitempty"`
	HeartRate  *float64 `json:"heart_rate,omitempty"`
}

// Stream is the time-ordered telemetry of one activity
type Stream struct {
	Samples         []Sample `json:"samples"`
	DurationSeconds int      `json:"duration_seconds"`
	DistanceMeters  float64  `json:"distance_meters"`
}

// Profile describes the athlete at scoring time
type Profile struct {
	WeightKg float64 `json:"weight_kg"`
	FTPWatts float64 `json:"ftp_watts"`
	HRMax    float64 `json:"hr_max"`
	HRRest   float64 `json:"hr_rest"`
	Age      int     `json:"age"`

	// Developer unlocks diagnostic output in the rendering layers.
	Developer bool `json:"developer"`
}

// Rank is the ability tier derived from watts/kg
type Rank string

const (
	RankElite        Rank = "ELITE"
	RankPro          Rank = "PRO"
	RankAdvanced     Rank = "ADVANCED"
	RankIntermediate Rank = "INTERMEDIATE"
	RankRookie       Rank = "ROOKIE"
)

// Ranks lists every rank from highest to lowest
func Ranks() []Rank {
	return []Rank{RankElite, RankPro, RankAdvanced, RankIntermediate, RankRookie}
}

// seniority orders ranks; lower is better
func (r Rank) seniority() int {
	for i, rank := range Ranks() {
		if rank == r {
			return i
		}
	}
	return -1
}

// QualityTier is the display tier derived from the final score
type QualityTier string

const (
	TierLegendary QualityTier = "LEGENDARY"
	TierEpic      QualityTier = "EPIC"
	TierGreat     QualityTier = "GREAT"
	TierSolid     QualityTier = "SOLID"
	TierOK        QualityTier = "OK"
	TierWeak      QualityTier = "WEAK"
)

// Metrics holds the scalar values derived from a validated stream
type Metrics struct {
	NormalizedPower    float64
	WattsPerKg         float64
	PowerScore         float64
	IntensityFactor    float64
	IntensityScore     float64
	DurationMinutes    float64
	VolumeScore        float64
	DecouplingDrift    float64
	HeartRateAvailable bool
}

// Breakdown is the score report handed back to the caller.
// A new value is produced on every call and the engine keeps no reference to it.
type Breakdown struct {
	PowerScore      float64     `json:"power_score"`
	VolumeScore     float64     `json:"volume_score"`
	IntensityScore  float64     `json:"intensity_score"`
	DecouplingDrift float64     `json:"decoupling_drift"`
	PenaltyApplied  float64     `json:"penalty_applied"`
	FinalScore      float64     `json:"final_score"`
	Rank            Rank        `json:"rank"`
	QualityTier     QualityTier `json:"quality_tier"`

	NormalizedPower    float64 `json:"normalized_power"`
	WattsPerKg         float64 `json:"watts_per_kg"`
	IntensityFactor    float64 `json:"intensity_factor"`
	DurationMinutes    float64 `json:"duration_minutes"`
	BaseScore          float64 `json:"base_score"`
	HeartRateAvailable bool    `json:"heart_rate_available"`
	EngineVersion      string  `json:"engine_version"`
}
