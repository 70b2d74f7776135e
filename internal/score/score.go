// Package score converts workout telemetry into a Performance Score and Rank.
//
// The pipeline runs Validate -> Extract -> Composite -> Classify and returns a
// fresh Breakdown. It performs no I/O and holds no state between calls, so a
// single Config may be shared by any number of concurrent callers.
package score

// Score validates the activity and computes its score report.
// On any failure no Breakdown is produced.
func Score(stream Stream, profile Profile, cfg Config) (Breakdown, error) {
	if !cfg.valid {
		return Breakdown{}, &InvalidConfigError{Field: "config", Reason: "not built with NewConfig"}
	}

	v, err := Validate(stream, profile)
	if err != nil {
		return Breakdown{}, err
	}

	m := Extract(v, cfg)
	base, penalty, final := Composite(m, cfg)

	return Breakdown{
		PowerScore:         m.PowerScore,
		VolumeScore:        m.VolumeScore,
		IntensityScore:     m.IntensityScore,
		DecouplingDrift:    m.DecouplingDrift,
		PenaltyApplied:     penalty,
		FinalScore:         final,
		Rank:               ClassifyRank(m.WattsPerKg, cfg),
		QualityTier:        ClassifyQuality(final),
		NormalizedPower:    m.NormalizedPower,
		WattsPerKg:         m.WattsPerKg,
		IntensityFactor:    m.IntensityFactor,
		DurationMinutes:    m.DurationMinutes,
		BaseScore:          base,
		HeartRateAvailable: m.HeartRateAvailable,
		EngineVersion:      EngineVersion,
	}, nil
}
