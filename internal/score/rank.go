package score

// ClassifyRank maps watts/kg to a performance rank.
// Cutoffs are checked from the highest rank down; the first one met wins.
func ClassifyRank(wkg float64, cfg Config) Rank {
	index := cfg.RankIndex(wkg)
	for _, t := range cfg.rankThresholds {
		if index >= t.Cutoff {
			return t.Rank
		}
	}
	return RankRookie
}

// ClassifyQuality maps a final score to its display tier
func ClassifyQuality(finalScore float64) QualityTier {
	switch {
	case finalScore >= 90:
		return TierLegendary
	case finalScore >= 80:
		return TierEpic
	case finalScore >= 70:
		return TierGreat
	case finalScore >= 60:
		return TierSolid
	case finalScore >= 40:
		return TierOK
	default:
		return TierWeak
	}
}
