package score

// Composite combines the weighted sub-scores and applies the decoupling penalty.
// base and penalty are on the 0-1 scale, final on the 0-100 scale.
func Composite(m Metrics, cfg Config) (base, penalty, final float64) {
	base = cfg.weightPower*m.PowerScore +
		cfg.weightVolume*m.VolumeScore +
		cfg.weightIntensity*m.IntensityScore

	penalty = DecouplingPenalty(m.DecouplingDrift, cfg)
	final = clamp(100*(base-penalty), 0, 100)
	return base, penalty, final
}

// DecouplingPenalty grows linearly with how far drift exceeds the tolerated band
func DecouplingPenalty(drift float64, cfg Config) float64 {
	if drift <= cfg.decouplingThreshold {
		return 0
	}
	return (drift - cfg.decouplingThreshold) * cfg.decouplingPenaltyFactor
}
