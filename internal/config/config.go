package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	yamlv3 "gopkg.in/yaml.v3"

	"powerscore/internal/score"
)

// Config represents the application configuration
type Config struct {
	Strava     StravaConfig  `koanf:"strava" yaml:"strava"`
	Athlete    AthleteConfig `koanf:"athlete" yaml:"athlete"`
	Engine     EngineConfig  `koanf:"engine" yaml:"engine"`
	Server     ServerConfig  `koanf:"server" yaml:"server"`
	Log        LogConfig     `koanf:"log" yaml:"log"`
	Sync       SyncConfig    `koanf:"sync" yaml:"sync"`
	Developers []int64       `koanf:"developers" yaml:"developers"`
}

// StravaConfig holds Strava API credentials
type StravaConfig struct {
	ClientID     string `koanf:"client_id" yaml:"client_id"`
	ClientSecret string `koanf:"client_secret" yaml:"client_secret"`
}

// AthleteConfig is the default profile used until one is stored
type AthleteConfig struct {
	WeightKg float64 `koanf:"weight_kg" yaml:"weight_kg"`
	FTPWatts float64 `koanf:"ftp_watts" yaml:"ftp_watts"`
	HRMax    float64 `koanf:"hr_max" yaml:"hr_max"`
	HRRest   float64 `koanf:"hr_rest" yaml:"hr_rest"`
	Age      int     `koanf:"age" yaml:"age"`
}

// EngineConfig mirrors the tunables of score.Config
type EngineConfig struct {
	WeightPower             float64      `koanf:"weight_power" yaml:"weight_power"`
	WeightVolume            float64      `koanf:"weight_volume" yaml:"weight_volume"`
	WeightIntensity         float64      `koanf:"weight_intensity" yaml:"weight_intensity"`
	WRWkgBenchmark          float64      `koanf:"wr_wkg_benchmark" yaml:"wr_wkg_benchmark"`
	VolumeLogDivisor        float64      `koanf:"volume_log_divisor" yaml:"volume_log_divisor"`
	DecouplingThreshold     float64      `koanf:"decoupling_threshold" yaml:"decoupling_threshold"`
	DecouplingPenaltyFactor float64      `koanf:"decoupling_penalty_factor" yaml:"decoupling_penalty_factor"`
	RankReferenceWkg        float64      `koanf:"rank_reference_wkg" yaml:"rank_reference_wkg"`
	RankExponent            float64      `koanf:"rank_exponent" yaml:"rank_exponent"`
	RankThresholds          []RankCutoff `koanf:"rank_thresholds" yaml:"rank_thresholds"`
}

// RankCutoff is one entry of engine.rank_thresholds
type RankCutoff struct {
	Rank   string  `koanf:"rank" yaml:"rank"`
	Cutoff float64 `koanf:"cutoff" yaml:"cutoff"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr    string `koanf:"addr" yaml:"addr"`
	BaseURL string `koanf:"base_url" yaml:"base_url"`
}

// LogConfig holds logging preferences
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // console or json
}

// SyncConfig tunes the Strava sync and batch scoring
type SyncConfig struct {
	PageSize    int `koanf:"page_size" yaml:"page_size"`
	Concurrency int `koanf:"concurrency" yaml:"concurrency"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// EnvPrefix is the prefix of environment overrides, e.g. SCORE_SERVER__ADDR
const EnvPrefix = "SCORE_"

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	thresholds := score.DefaultRankThresholds()
	cutoffs := make([]RankCutoff, len(thresholds))
	for i, t := range thresholds {
		cutoffs[i] = RankCutoff{Rank: string(t.Rank), Cutoff: t.Cutoff}
	}

	return Config{
		Athlete: AthleteConfig{
			WeightKg: 70,
			FTPWatts: 250,
			HRMax:    185,
			HRRest:   50,
			Age:      30,
		},
		Engine: EngineConfig{
			WeightPower:             score.DefaultWeightPower,
			WeightVolume:            score.DefaultWeightVolume,
			WeightIntensity:         score.DefaultWeightIntensity,
			WRWkgBenchmark:          score.DefaultWRWkgBenchmark,
			VolumeLogDivisor:        score.DefaultVolumeLogDivisor,
			DecouplingThreshold:     score.DefaultDecouplingThreshold,
			DecouplingPenaltyFactor: score.DefaultDecouplingPenaltyFactor,
			RankReferenceWkg:        score.DefaultRankReferenceWkg,
			RankExponent:            score.DefaultRankExponent,
			RankThresholds:          cutoffs,
		},
		Server: ServerConfig{
			Addr:    ":8080",
			BaseURL: "http://localhost:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Sync: SyncConfig{
			PageSize:    50,
			Concurrency: 4,
		},
	}
}

// Load reads the configuration from $SCORE_CONFIG or ~/.score/config.yaml,
// then applies SCORE_ environment overrides.
func Load() (*Config, error) {
	path := os.Getenv(EnvPrefix + "CONFIG")
	if path == "" {
		var err error
		path, err = getConfigPath()
		if err != nil {
			return nil, err
		}
	}
	return LoadFrom(path)
}

// LoadFrom layers defaults, the YAML file at path and environment variables.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNoConfig
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// SCORE_ENGINE__WEIGHT_POWER -> engine.weight_power
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg := DefaultConfig()
	if k.Exists("engine.rank_thresholds") {
		// Replace the default list rather than merging into it.
		cfg.Engine.RankThresholds = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to ~/.score/config.yaml
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the configuration as YAML to path
func SaveTo(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}
	return CreateExampleAt(path)
}

// CreateExampleAt writes the example config to path unless a file is already there
func CreateExampleAt(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.Strava = StravaConfig{
		ClientID:     placeholderClientID,
		ClientSecret: placeholderClientSecret,
	}

	return SaveTo(path, &example)
}

// Validate checks that every section can be turned into a working value.
// Strava credentials are checked separately by the CredentialsProvider.
func (c *Config) Validate() error {
	if _, err := c.ScoreConfig(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if err := score.ValidateProfile(c.DefaultProfile()); err != nil {
		return fmt.Errorf("athlete: %w", err)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "" && c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be \"console\" or \"json\", got %q", c.Log.Format)
	}

	if c.Sync.PageSize < 1 || c.Sync.PageSize > 200 {
		return fmt.Errorf("sync.page_size must be between 1 and 200, got %d", c.Sync.PageSize)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1, got %d", c.Sync.Concurrency)
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}

	return nil
}

// ScoreConfig builds the immutable engine configuration.
func (c *Config) ScoreConfig() (score.Config, error) {
	e := c.Engine
	opts := []score.Option{
		score.WithWeights(e.WeightPower, e.WeightVolume, e.WeightIntensity),
		score.WithWRWkgBenchmark(e.WRWkgBenchmark),
		score.WithVolumeLogDivisor(e.VolumeLogDivisor),
		score.WithDecoupling(e.DecouplingThreshold, e.DecouplingPenaltyFactor),
		score.WithRankScale(e.RankReferenceWkg, e.RankExponent),
	}

	if len(e.RankThresholds) > 0 {
		thresholds := make([]score.RankThreshold, len(e.RankThresholds))
		for i, t := range e.RankThresholds {
			thresholds[i] = score.RankThreshold{
				Rank:   score.Rank(strings.ToUpper(t.Rank)),
				Cutoff: t.Cutoff,
			}
		}
		opts = append(opts, score.WithRankThresholds(thresholds))
	}

	return score.NewConfig(opts...)
}

// DefaultProfile returns the athlete section as an engine profile
func (c *Config) DefaultProfile() score.Profile {
	return score.Profile{
		WeightKg: c.Athlete.WeightKg,
		FTPWatts: c.Athlete.FTPWatts,
		HRMax:    c.Athlete.HRMax,
		HRRest:   c.Athlete.HRRest,
		Age:      c.Athlete.Age,
	}
}

// ParseLevel returns the configured zerolog level, defaulting to info
func (c *Config) ParseLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".score"), nil
}
