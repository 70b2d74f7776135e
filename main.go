package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"powerscore/internal/config"
	"powerscore/internal/metrics"
	"powerscore/internal/service"
	"powerscore/internal/store"
)

// runtime holds the collaborators shared by every command
type runtime struct {
	cfg     *config.Config
	store   *store.Store
	metrics *metrics.Manager
	scorer  *service.ScoreService
	query   *service.QueryService
}

func (rt *runtime) Close() error {
	return rt.store.Close()
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.IsSet("config") {
		cfg, err = config.LoadFrom(c.String("config"))
	} else {
		cfg, err = config.Load()
	}
	if errors.Is(err, config.ErrNoConfig) {
		return nil, fmt.Errorf("%w: run 'score init' to create one", err)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newRuntime loads the configuration, opens the database and builds the services
func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if !c.IsSet("log-level") {
		zerolog.SetGlobalLevel(cfg.ParseLevel())
	}

	engine, err := cfg.ScoreConfig()
	if err != nil {
		return nil, err
	}

	path := c.String("db")
	if path == "" {
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Debug().Str("path", path).Msg("database")

	m := metrics.NewManager()
	scorer := service.NewScoreService(st, engine, cfg.DefaultProfile(),
		service.WithMetrics(m),
		service.WithDevelopers(cfg.Developers),
	)
	return &runtime{
		cfg:     cfg,
		store:   st,
		metrics: m,
		scorer:  scorer,
		query:   service.NewQueryService(st, scorer),
	}, nil
}

// withRuntime adapts a command that needs the services into a cli.ActionFunc
func withRuntime(f func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := newRuntime(c)
		if err != nil {
			return err
		}
		defer rt.Close()
		return f(c, rt)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "score",
		HelpName: "score",
		Usage:    "Performance Score for power-meter rides",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML config file",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "path to the sqlite database",
				EnvVars: []string{config.EnvPrefix + "DB"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level (trace, debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "json-logs",
				Usage: "log as JSON instead of console output",
			},
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			log.Error().Err(err).Msg(c.App.Name)
		},
		Before: func(c *cli.Context) error {
			level, err := zerolog.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			zerolog.SetGlobalLevel(level)
			zerolog.DurationFieldUnit = time.Millisecond
			zerolog.DurationFieldInteger = false
			if c.Bool("json-logs") {
				log.Logger = zerolog.New(c.App.ErrWriter).With().Timestamp().Logger()
				return nil
			}
			log.Logger = log.Output(
				zerolog.ConsoleWriter{
					Out:        c.App.ErrWriter,
					NoColor:    false,
					TimeFormat: time.RFC3339,
				},
			)
			return nil
		},
		Commands: []*cli.Command{
			initCommand(),
			authCommand(),
			syncCommand(),
			scoreCommand(),
			importCommand(),
			historyCommand(),
			profileCommand(),
			dashboardCommand(),
			serveCommand(),
		},
		Action: runDashboard,
	}
}

func main() {
	if err := newApp().RunContext(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}
