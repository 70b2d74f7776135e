package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"powerscore/internal/score"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := DefaultConfig()

		convey.Convey("Then the athlete profile has the stock values", func() {
			convey.So(cfg.Athlete.WeightKg, convey.ShouldEqual, 70)
			convey.So(cfg.Athlete.FTPWatts, convey.ShouldEqual, 250)
			convey.So(cfg.Athlete.HRMax, convey.ShouldEqual, 185)
			convey.So(cfg.Athlete.HRRest, convey.ShouldEqual, 50)
			convey.So(cfg.Athlete.Age, convey.ShouldEqual, 30)
		})

		convey.Convey("Then it validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the engine config matches the engine defaults", func() {
			sc, err := cfg.ScoreConfig()
			convey.So(err, convey.ShouldBeNil)
			convey.So(sc.RankThresholds(), convey.ShouldResemble, score.DefaultRankThresholds())
			p, v, i := sc.Weights()
			convey.So([]float64{p, v, i}, convey.ShouldResemble, []float64{0.5, 0.3, 0.2})
		})

		convey.Convey("Then strava credentials are empty", func() {
			convey.So(cfg.Strava.ClientID, convey.ShouldBeEmpty)
			convey.So(cfg.Strava.ClientSecret, convey.ShouldBeEmpty)
		})
	})
}

func TestLoadFrom(t *testing.T) {
	convey.Convey("Given no config file", t, func() {
		_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))

		convey.Convey("Then ErrNoConfig is returned", func() {
			convey.So(errors.Is(err, ErrNoConfig), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a partial YAML file", t, func() {
		path := writeConfig(t, `
strava:
  client_id: "12345"
  client_secret: abc
athlete:
  weight_kg: 64
engine:
  rank_thresholds:
    - rank: pro
      cutoff: 0.3
    - rank: intermediate
      cutoff: 0.1
developers: [42, 7]
`)
		cfg, err := LoadFrom(path)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then file values override defaults", func() {
			convey.So(cfg.Strava.ClientID, convey.ShouldEqual, "12345")
			convey.So(cfg.Athlete.WeightKg, convey.ShouldEqual, 64)
		})

		convey.Convey("Then unspecified values keep their defaults", func() {
			convey.So(cfg.Athlete.FTPWatts, convey.ShouldEqual, 250)
			convey.So(cfg.Engine.WeightPower, convey.ShouldEqual, 0.5)
			convey.So(cfg.Server.Addr, convey.ShouldEqual, ":8080")
		})

		convey.Convey("Then the rank list is replaced, not merged", func() {
			convey.So(len(cfg.Engine.RankThresholds), convey.ShouldEqual, 2)
			sc, err := cfg.ScoreConfig()
			convey.So(err, convey.ShouldBeNil)
			convey.So(sc.RankThresholds()[0].Rank, convey.ShouldEqual, score.RankPro)
		})

		convey.Convey("Then developers are read as athlete ids", func() {
			convey.So(cfg.Developers, convey.ShouldResemble, []int64{42, 7})
		})
	})

	convey.Convey("Given environment overrides", t, func() {
		path := writeConfig(t, "server:\n  addr: \":9000\"\n")
		t.Setenv("SCORE_SERVER__ADDR", ":7070")
		t.Setenv("SCORE_SYNC__CONCURRENCY", "9")

		cfg, err := LoadFrom(path)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then they win over the file", func() {
			convey.So(cfg.Server.Addr, convey.ShouldEqual, ":7070")
			convey.So(cfg.Sync.Concurrency, convey.ShouldEqual, 9)
		})
	})

	convey.Convey("Given malformed YAML", t, func() {
		path := writeConfig(t, "strava: [unclosed")
		_, err := LoadFrom(path)

		convey.Convey("Then a parse error is returned", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, ErrNoConfig), convey.ShouldBeFalse)
		})
	})
}

func TestSaveAndCreateExample(t *testing.T) {
	convey.Convey("Given an example written to a fresh directory", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "config.yaml")
		convey.So(CreateExampleAt(path), convey.ShouldBeNil)

		cfg, err := LoadFrom(path)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then it round-trips through the loader", func() {
			convey.So(cfg.Strava.ClientID, convey.ShouldEqual, placeholderClientID)
			convey.So(cfg.Engine, convey.ShouldResemble, DefaultConfig().Engine)
		})

		convey.Convey("Then a second call leaves the file alone", func() {
			cfg.Athlete.WeightKg = 81
			convey.So(SaveTo(path, cfg), convey.ShouldBeNil)
			convey.So(CreateExampleAt(path), convey.ShouldBeNil)

			again, err := LoadFrom(path)
			convey.So(err, convey.ShouldBeNil)
			convey.So(again.Athlete.WeightKg, convey.ShouldEqual, 81)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{"weights off", func(c *Config) { c.Engine.WeightVolume = 0.2 }, "engine"},
		{"unknown rank", func(c *Config) { c.Engine.RankThresholds[0].Rank = "legend" }, "engine"},
		{"zero weight", func(c *Config) { c.Athlete.WeightKg = 0 }, "athlete"},
		{"hr max below rest", func(c *Config) { c.Athlete.HRMax = 40 }, "athlete"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"page size", func(c *Config) { c.Sync.PageSize = 500 }, "sync.page_size"},
		{"concurrency", func(c *Config) { c.Sync.Concurrency = 0 }, "sync.concurrency"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
	}

	convey.Convey("Given an invalid config", t, func() {
		for _, tt := range tests {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			convey.Convey("Then "+tt.name+" is rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, tt.errContains)
			})
		}
	})
}

func TestEnvFileProvider(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	convey.Convey("Given credentials in the environment and the file", t, func() {
		cfg := DefaultConfig()
		cfg.Strava = StravaConfig{ClientID: "file-id", ClientSecret: "file-secret"}
		p := &EnvFileProvider{Config: &cfg, Getenv: env(map[string]string{
			"STRAVA_CLIENT_ID":     "env-id",
			"STRAVA_CLIENT_SECRET": "env-secret",
		})}

		creds, err := p.Credentials()
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the environment wins", func() {
			convey.So(creds.ClientID, convey.ShouldEqual, "env-id")
			convey.So(creds.ClientSecret, convey.ShouldEqual, "env-secret")
		})
	})

	convey.Convey("Given only a partial environment", t, func() {
		cfg := DefaultConfig()
		cfg.Strava = StravaConfig{ClientID: "file-id", ClientSecret: "file-secret"}
		p := &EnvFileProvider{Config: &cfg, Getenv: env(map[string]string{"STRAVA_CLIENT_ID": "env-id"})}

		creds, err := p.Credentials()
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the file is used", func() {
			convey.So(creds.ClientID, convey.ShouldEqual, "file-id")
		})
	})

	convey.Convey("Given placeholder credentials and no environment", t, func() {
		cfg := DefaultConfig()
		cfg.Strava = StravaConfig{ClientID: placeholderClientID, ClientSecret: placeholderClientSecret}
		p := &EnvFileProvider{Config: &cfg, Getenv: env(nil)}

		_, err := p.Credentials()

		convey.Convey("Then ErrMissingCredentials is returned", func() {
			convey.So(errors.Is(err, ErrMissingCredentials), convey.ShouldBeTrue)
		})
	})
}
