package score

import (
	"fmt"
	"math"
)

// EngineVersion is stamped on every Breakdown so stored history can be told apart
// when the formulas change.
const EngineVersion = "4.2"

// Default tuning values.
const (
	DefaultWeightPower             = 0.5
	DefaultWeightVolume            = 0.3
	DefaultWeightIntensity         = 0.2
	DefaultWRWkgBenchmark          = 6.4
	DefaultVolumeLogDivisor        = 4.5
	DefaultDecouplingThreshold     = 0.05 // 5% drift is normal
	DefaultDecouplingPenaltyFactor = 2.0
	DefaultRankReferenceWkg        = 6.0
	DefaultRankExponent            = 3.0

	weightTolerance = 1e-6
)

// RankThreshold is the minimum rank index needed for a rank
type RankThreshold struct {
	Rank   Rank    `json:"rank"`
	Cutoff float64 `json:"cutoff"`
}

// DefaultRankThresholds returns the stock cutoffs, highest first
func DefaultRankThresholds() []RankThreshold {
	return []RankThreshold{
		{Rank: RankElite, Cutoff: 0.35},
		{Rank: RankPro, Cutoff: 0.28},
		{Rank: RankAdvanced, Cutoff: 0.22},
		{Rank: RankIntermediate, Cutoff: 0.15},
	}
}

// Config holds the weights and thresholds of the engine.
// Build it with NewConfig; the zero value is rejected by Score.
// A Config is immutable and safe to share between goroutines.
type Config struct {
	weightPower     float64
	weightVolume    float64
	weightIntensity float64

	decouplingThreshold     float64
	decouplingPenaltyFactor float64

	volumeLogDivisor float64
	wrWkgBenchmark   float64

	rankThresholds   []RankThreshold
	rankReferenceWkg float64
	rankExponent     float64

	valid bool
}

// Option applies a configuration option to a Config under construction.
type Option func(*Config)

// WithWeights sets the power, volume and intensity weights. They must sum to 1.
func WithWeights(power, volume, intensity float64) Option {
	return func(c *Config) {
		c.weightPower = power
		c.weightVolume = volume
		c.weightIntensity = intensity
	}
}

// WithDecoupling sets the tolerated drift and the penalty slope above it.
func WithDecoupling(threshold, penaltyFactor float64) Option {
	return func(c *Config) {
		c.decouplingThreshold = threshold
		c.decouplingPenaltyFactor = penaltyFactor
	}
}

// WithVolumeLogDivisor sets the divisor applied to ln(1 + minutes).
func WithVolumeLogDivisor(divisor float64) Option {
	return func(c *Config) {
		c.volumeLogDivisor = divisor
	}
}

// WithWRWkgBenchmark sets the world-record watts/kg the power score is normalized against.
func WithWRWkgBenchmark(wkg float64) Option {
	return func(c *Config) {
		c.wrWkgBenchmark = wkg
	}
}

// WithRankThresholds replaces the rank cutoffs. Order matters: highest rank first.
func WithRankThresholds(thresholds []RankThreshold) Option {
	return func(c *Config) {
		c.rankThresholds = append([]RankThreshold(nil), thresholds...)
	}
}

// WithRankScale sets how watts/kg is mapped onto the rank index:
// index = (wkg / referenceWkg) ^ exponent. Use (1, 1) to compare raw watts/kg.
func WithRankScale(referenceWkg, exponent float64) Option {
	return func(c *Config) {
		c.rankReferenceWkg = referenceWkg
		c.rankExponent = exponent
	}
}

// NewConfig builds a validated Config from the defaults and the given options.
func NewConfig(opts ...Option) (Config, error) {
	c := Config{
		weightPower:             DefaultWeightPower,
		weightVolume:            DefaultWeightVolume,
		weightIntensity:         DefaultWeightIntensity,
		decouplingThreshold:     DefaultDecouplingThreshold,
		decouplingPenaltyFactor: DefaultDecouplingPenaltyFactor,
		volumeLogDivisor:        DefaultVolumeLogDivisor,
		wrWkgBenchmark:          DefaultWRWkgBenchmark,
		rankThresholds:          DefaultRankThresholds(),
		rankReferenceWkg:        DefaultRankReferenceWkg,
		rankExponent:            DefaultRankExponent,
	}

	for _, opt := range opts {
		opt(&c)
	}

	if err := c.validate(); err != nil {
		return Config{}, err
	}

	c.valid = true
	return c, nil
}

// DefaultConfig returns the stock configuration
func DefaultConfig() Config {
	c, err := NewConfig()
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Config) validate() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"weight_power", c.weightPower},
		{"weight_volume", c.weightVolume},
		{"weight_intensity", c.weightIntensity},
	}
	for _, w := range weights {
		if !isFinite(w.value) || w.value < 0 {
			return &InvalidConfigError{Field: w.name, Reason: fmt.Sprintf("must be a non-negative number, got %v", w.value)}
		}
	}
	sum := c.weightPower + c.weightVolume + c.weightIntensity
	if math.Abs(sum-1.0) > weightTolerance {
		return &InvalidConfigError{Field: "weights", Reason: fmt.Sprintf("must sum to 1.0, got %v", sum)}
	}

	if !isFinite(c.decouplingThreshold) || c.decouplingThreshold < 0 || c.decouplingThreshold >= 1 {
		return &InvalidConfigError{Field: "decoupling_threshold", Reason: fmt.Sprintf("must be in [0,1), got %v", c.decouplingThreshold)}
	}
	if !isFinite(c.decouplingPenaltyFactor) || c.decouplingPenaltyFactor < 0 {
		return &InvalidConfigError{Field: "decoupling_penalty_factor", Reason: fmt.Sprintf("must be >= 0, got %v", c.decouplingPenaltyFactor)}
	}
	if !isFinite(c.volumeLogDivisor) || c.volumeLogDivisor <= 0 {
		return &InvalidConfigError{Field: "volume_log_divisor", Reason: fmt.Sprintf("must be > 0, got %v", c.volumeLogDivisor)}
	}
	if !isFinite(c.wrWkgBenchmark) || c.wrWkgBenchmark <= 0 {
		return &InvalidConfigError{Field: "wr_wkg_benchmark", Reason: fmt.Sprintf("must be > 0, got %v", c.wrWkgBenchmark)}
	}
	if !isFinite(c.rankReferenceWkg) || c.rankReferenceWkg <= 0 {
		return &InvalidConfigError{Field: "rank_reference_wkg", Reason: fmt.Sprintf("must be > 0, got %v", c.rankReferenceWkg)}
	}
	if !isFinite(c.rankExponent) || c.rankExponent <= 0 {
		return &InvalidConfigError{Field: "rank_exponent", Reason: fmt.Sprintf("must be > 0, got %v", c.rankExponent)}
	}

	return validateRankThresholds(c.rankThresholds)
}

// validateRankThresholds checks that cutoffs descend strictly in rank order
func validateRankThresholds(thresholds []RankThreshold) error {
	if len(thresholds) == 0 {
		return &InvalidConfigError{Field: "rank_thresholds", Reason: "must not be empty"}
	}

	seen := make(map[Rank]bool, len(thresholds))
	for i, t := range thresholds {
		if t.Rank == RankRookie || t.Rank.seniority() < 0 {
			return &InvalidConfigError{Field: "rank_thresholds", Reason: fmt.Sprintf("unknown or fallback rank %q", t.Rank)}
		}
		if seen[t.Rank] {
			return &InvalidConfigError{Field: "rank_thresholds", Reason: fmt.Sprintf("duplicate rank %q", t.Rank)}
		}
		seen[t.Rank] = true

		if !isFinite(t.Cutoff) || t.Cutoff < 0 {
			return &InvalidConfigError{Field: "rank_thresholds", Reason: fmt.Sprintf("%s cutoff must be >= 0, got %v", t.Rank, t.Cutoff)}
		}
		if i == 0 {
			continue
		}

		prev := thresholds[i-1]
		if t.Rank.seniority() <= prev.Rank.seniority() {
			return &InvalidConfigError{Field: "rank_thresholds", Reason: fmt.Sprintf("%s listed after %s", t.Rank, prev.Rank)}
		}
		if t.Cutoff >= prev.Cutoff {
			return &InvalidConfigError{
				Field:  "rank_thresholds",
				Reason: fmt.Sprintf("must be strictly descending: %s (%v) >= %s (%v)", t.Rank, t.Cutoff, prev.Rank, prev.Cutoff),
			}
		}
	}
	return nil
}

// Valid reports whether c was built by NewConfig
func (c Config) Valid() bool { return c.valid }

// Weights returns the power, volume and intensity weights
func (c Config) Weights() (power, volume, intensity float64) {
	return c.weightPower, c.weightVolume, c.weightIntensity
}

// DecouplingThreshold is the drift tolerated before a penalty applies
func (c Config) DecouplingThreshold() float64 { return c.decouplingThreshold }

// DecouplingPenaltyFactor scales drift above the threshold into a penalty
func (c Config) DecouplingPenaltyFactor() float64 { return c.decouplingPenaltyFactor }

// VolumeLogDivisor divides ln(1 + minutes) in the volume score
func (c Config) VolumeLogDivisor() float64 { return c.volumeLogDivisor }

// WRWkgBenchmark is the watts/kg that earns a full power score
func (c Config) WRWkgBenchmark() float64 { return c.wrWkgBenchmark }

// RankThresholds returns a copy of the cutoffs, highest rank first
func (c Config) RankThresholds() []RankThreshold {
	return append([]RankThreshold(nil), c.rankThresholds...)
}

// RankScale returns the reference watts/kg and exponent of the rank index
func (c Config) RankScale() (referenceWkg, exponent float64) {
	return c.rankReferenceWkg, c.rankExponent
}

// RankIndex maps watts/kg onto the scale the rank cutoffs are expressed in
func (c Config) RankIndex(wkg float64) float64 {
	if wkg <= 0 {
		return 0
	}
	return math.Pow(wkg/c.rankReferenceWkg, c.rankExponent)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
