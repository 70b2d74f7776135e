package score

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Valid())
	p, v, i := cfg.Weights()
	assert.Equal(t, 0.5, p)
	assert.Equal(t, 0.3, v)
	assert.Equal(t, 0.2, i)
	assert.Equal(t, 0.05, cfg.DecouplingThreshold())
	assert.Equal(t, 2.0, cfg.DecouplingPenaltyFactor())
	assert.Equal(t, 4.5, cfg.VolumeLogDivisor())
	assert.Equal(t, 6.4, cfg.WRWkgBenchmark())
	assert.Equal(t, DefaultRankThresholds(), cfg.RankThresholds())
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		field string
	}{
		{"weights sum to 0.9", []Option{WithWeights(0.5, 0.2, 0.2)}, "weights"},
		{"weights sum to 1.1", []Option{WithWeights(0.5, 0.3, 0.3)}, "weights"},
		{"negative weight", []Option{WithWeights(1.2, -0.2, 0)}, "weight_volume"},
		{"NaN weight", []Option{WithWeights(math.NaN(), 0.5, 0.5)}, "weight_power"},
		{"threshold of one", []Option{WithDecoupling(1, 2)}, "decoupling_threshold"},
		{"negative penalty", []Option{WithDecoupling(0.05, -1)}, "decoupling_penalty_factor"},
		{"zero divisor", []Option{WithVolumeLogDivisor(0)}, "volume_log_divisor"},
		{"zero benchmark", []Option{WithWRWkgBenchmark(0)}, "wr_wkg_benchmark"},
		{"zero rank reference", []Option{WithRankScale(0, 3)}, "rank_reference_wkg"},
		{"zero rank exponent", []Option{WithRankScale(6, 0)}, "rank_exponent"},
		{"empty thresholds", []Option{WithRankThresholds(nil)}, "rank_thresholds"},
		{"ascending thresholds", []Option{WithRankThresholds([]RankThreshold{
			{RankElite, 0.2}, {RankPro, 0.3},
		})}, "rank_thresholds"},
		{"equal thresholds", []Option{WithRankThresholds([]RankThreshold{
			{RankElite, 0.3}, {RankPro, 0.3},
		})}, "rank_thresholds"},
		{"rank order reversed", []Option{WithRankThresholds([]RankThreshold{
			{RankPro, 0.4}, {RankElite, 0.3},
		})}, "rank_thresholds"},
		{"duplicate rank", []Option{WithRankThresholds([]RankThreshold{
			{RankElite, 0.4}, {RankElite, 0.3},
		})}, "rank_thresholds"},
		{"rookie cutoff", []Option{WithRankThresholds([]RankThreshold{
			{RankElite, 0.4}, {RankRookie, 0.1},
		})}, "rank_thresholds"},
		{"unknown rank", []Option{WithRankThresholds([]RankThreshold{
			{Rank("LEGEND"), 0.4},
		})}, "rank_thresholds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig(tt.opts...)
			require.Error(t, err)
			assert.False(t, cfg.Valid())
			assert.True(t, errors.Is(err, ErrInvalidConfig))

			var cfgErr *InvalidConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewConfig_WeightTolerance(t *testing.T) {
	_, err := NewConfig(WithWeights(0.1, 0.2, 0.7000000001))
	assert.NoError(t, err)
}

func TestNewConfig_PartialThresholds(t *testing.T) {
	cfg, err := NewConfig(WithRankThresholds([]RankThreshold{
		{RankPro, 0.3}, {RankIntermediate, 0.1},
	}))
	require.NoError(t, err)
	assert.Len(t, cfg.RankThresholds(), 2)
}

func TestConfig_RankThresholdsIsolated(t *testing.T) {
	in := DefaultRankThresholds()
	cfg, err := NewConfig(WithRankThresholds(in))
	require.NoError(t, err)

	in[0].Cutoff = 99
	out := cfg.RankThresholds()
	out[1].Cutoff = 99

	assert.Equal(t, DefaultRankThresholds(), cfg.RankThresholds())
}

func TestConfig_RankIndex(t *testing.T) {
	cfg := DefaultConfig()
	assert.Zero(t, cfg.RankIndex(0))
	assert.Zero(t, cfg.RankIndex(-1))
	assert.InDelta(t, 1.0, cfg.RankIndex(6), 1e-12)
	assert.InDelta(t, math.Pow(3.5/6, 3), cfg.RankIndex(3.5), 1e-12)

	raw, err := NewConfig(WithRankScale(1, 1))
	require.NoError(t, err)
	assert.InDelta(t, 3.5, raw.RankIndex(3.5), 1e-12)
}
