package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"powerscore/internal/auth"
	"powerscore/internal/config"
	"powerscore/internal/fitfile"
	"powerscore/internal/score"
	"powerscore/internal/server"
	"powerscore/internal/service"
	"powerscore/internal/store"
	"powerscore/internal/strava"
	"powerscore/internal/tui"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "write an example config file",
		Action: func(c *cli.Context) error {
			if err := config.CreateExample(); err != nil {
				return fmt.Errorf("creating example config: %w", err)
			}
			dir, err := config.GetConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Please edit the config file at:\n  %s\n\n", filepath.Join(dir, "config.yaml"))
			fmt.Fprintln(c.App.Writer, "Strava API credentials come from https://www.strava.com/settings/api")
			return nil
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "connect a Strava account",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			creds, err := config.NewEnvFileProvider(rt.cfg).Credentials()
			if err != nil {
				return err
			}
			token, err := auth.Authenticate(c.Context, auth.NewOAuthConfig(creds, auth.CallbackURL()), c.App.Writer)
			if err != nil {
				return fmt.Errorf("authentication: %w", err)
			}
			if err := auth.SaveToken(c.Context, rt.store, token); err != nil {
				return fmt.Errorf("saving auth: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "\nSuccessfully authenticated as athlete %d!\n", auth.ExtractAthleteID(token))
			return nil
		}),
	}
}

// newStravaClient builds an API client on the stored, refreshing token
func newStravaClient(c *cli.Context, rt *runtime) (*strava.Client, error) {
	creds, err := config.NewEnvFileProvider(rt.cfg).Credentials()
	if err != nil {
		return nil, err
	}
	ts, err := auth.StoredTokenSource(c.Context, rt.store, auth.NewOAuthConfig(creds, auth.CallbackURL()))
	if err != nil {
		return nil, err
	}
	return strava.NewClient(ts, strava.WithObserver(rt.metrics)), nil
}

func newSyncService(rt *runtime, provider service.ActivityProvider) *service.SyncService {
	return service.NewSyncService(provider, rt.store, rt.scorer, service.SyncOptions{
		PageSize:    rt.cfg.Sync.PageSize,
		Concurrency: rt.cfg.Sync.Concurrency,
	})
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "fetch new rides from Strava and score them",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			client, err := newStravaClient(c, rt)
			if err != nil {
				return err
			}

			progress := make(chan service.SyncProgress, 16)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for p := range progress {
					if p.Error != nil {
						log.Warn().Err(p.Error).Str("phase", p.Phase).Msg("sync")
						continue
					}
					log.Info().Str("phase", p.Phase).Int("completed", p.Completed).Int("total", p.Total).Str("activity", p.CurrentActivity).Msg("sync")
				}
			}()

			result, err := newSyncService(rt, client).SyncAll(c.Context, progress)
			<-done
			if result != nil {
				printSyncResult(c.App.Writer, result)
			}
			return err
		}),
	}
}

func printSyncResult(w io.Writer, r *service.SyncResult) {
	fmt.Fprintf(w, "fetched %d, stored %d, streams %d, scored %d, rejected %d\n",
		r.ActivitiesFetched, r.ActivitiesStored, r.StreamsFetched, r.ScoresComputed, r.ScoresRejected)
	for _, err := range r.Errors {
		fmt.Fprintf(w, "  %v\n", err)
	}
}

func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "score a stored activity with the current profile",
		ArgsUsage: "<activity id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the breakdown as JSON"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one activity id")
			}
			id, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid activity id %q", c.Args().First())
			}
			rec, err := rt.scorer.ScoreActivity(c.Context, id)
			if err != nil {
				return err
			}
			profile, err := rt.scorer.Profile(c.Context)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, rec.Breakdown)
			}
			printBreakdown(c.App.Writer, rec.Breakdown, profile.Developer)
			return nil
		}),
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBreakdown(w io.Writer, b score.Breakdown, developer bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Final score\t%.1f\t%s\n", b.FinalScore, b.QualityTier)
	fmt.Fprintf(tw, "Rank\t%s\t%.2f W/kg\n", b.Rank, b.WattsPerKg)
	fmt.Fprintf(tw, "Power\t%.1f\t\n", b.PowerScore)
	fmt.Fprintf(tw, "Volume\t%.1f\t%.0f min\n", b.VolumeScore, b.DurationMinutes)
	fmt.Fprintf(tw, "Intensity\t%.1f\t\n", b.IntensityScore)
	if b.HeartRateAvailable {
		fmt.Fprintf(tw, "Drift\t%.1f%%\tpenalty %.1f\n", b.DecouplingDrift*100, b.PenaltyApplied)
	} else {
		fmt.Fprintf(tw, "Drift\t-\tno heart rate\n")
	}
	if developer {
		fmt.Fprintf(tw, "Normalized power\t%.0f W\t\n", b.NormalizedPower)
		fmt.Fprintf(tw, "Intensity factor\t%.2f\t\n", b.IntensityFactor)
		fmt.Fprintf(tw, "Base score\t%.1f\t\n", b.BaseScore)
		fmt.Fprintf(tw, "Engine\t%s\t\n", b.EngineVersion)
	}
	tw.Flush()
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "import and score FIT activity files",
		ArgsUsage: "<file.fit>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-score", Usage: "store the rides without scoring them"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			if c.NArg() == 0 {
				return errors.New("expected at least one FIT file")
			}
			profile, err := rt.scorer.Profile(c.Context)
			if err != nil {
				return err
			}
			for _, path := range c.Args().Slice() {
				a, err := fitfile.ReadFile(path)
				if err != nil {
					return err
				}
				a.Summary.Name = filepath.Base(path)
				if err := rt.store.UpsertActivity(c.Context, &a.Summary); err != nil {
					return fmt.Errorf("storing %s: %w", path, err)
				}
				if err := rt.store.SaveStreams(c.Context, a.Summary.ID, a.Points); err != nil {
					return fmt.Errorf("storing %s streams: %w", path, err)
				}
				log.Info().Str("file", path).Int64("id", a.Summary.ID).Int("samples", len(a.Points)).Msg("imported")

				if c.Bool("no-score") {
					continue
				}
				rec, err := rt.scorer.ScoreActivity(c.Context, a.Summary.ID)
				if score.IsValidationError(err) {
					log.Warn().Str("file", path).Str("kind", score.ErrorKind(err)).Err(err).Msg("not scored")
					continue
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s (id %d)\n", path, a.Summary.ID)
				printBreakdown(c.App.Writer, rec.Breakdown, profile.Developer)
			}
			return nil
		}),
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "list the latest score of recent rides",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of rides"},
			&cli.BoolFlag{Name: "json", Usage: "print as JSON"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			history, err := rt.query.GetScoreHistory(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, history)
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tACTIVITY\tSCORE\tRANK\tTIER\tW/KG")
			for _, rec := range history {
				fmt.Fprintf(tw, "%s\t%d\t%.1f\t%s\t%s\t%.2f\n",
					rec.ActivityDate.Local().Format("2006-01-02"), rec.ActivityID, rec.FinalScore, rec.Rank, rec.QualityTier, rec.WattsPerKg)
			}
			return tw.Flush()
		}),
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "show or update the athlete profile",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the profile used for scoring",
				Action: withRuntime(func(c *cli.Context, rt *runtime) error {
					p, err := rt.scorer.Profile(c.Context)
					if err != nil {
						return err
					}
					return writeJSON(c.App.Writer, p)
				}),
			},
			{
				Name:  "set",
				Usage: "update profile fields",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "weight", Usage: "body weight in kg"},
					&cli.Float64Flag{Name: "ftp", Usage: "functional threshold power in watts"},
					&cli.Float64Flag{Name: "hr-max", Usage: "maximum heart rate"},
					&cli.Float64Flag{Name: "hr-rest", Usage: "resting heart rate"},
					&cli.IntFlag{Name: "age", Usage: "age in years"},
				},
				Action: withRuntime(func(c *cli.Context, rt *runtime) error {
					current, err := rt.scorer.Profile(c.Context)
					if err != nil {
						return err
					}
					p := applyProfileFlags(c, current)
					if err := score.ValidateProfile(p); err != nil {
						return err
					}
					if err := rt.store.SaveProfile(c.Context, &store.Profile{
						WeightKg: p.WeightKg,
						FTPWatts: p.FTPWatts,
						HRMax:    p.HRMax,
						HRRest:   p.HRRest,
						Age:      p.Age,
					}); err != nil {
						return fmt.Errorf("saving profile: %w", err)
					}
					return writeJSON(c.App.Writer, p)
				}),
			},
		},
	}
}

func applyProfileFlags(c *cli.Context, p score.Profile) score.Profile {
	if c.IsSet("weight") {
		p.WeightKg = c.Float64("weight")
	}
	if c.IsSet("ftp") {
		p.FTPWatts = c.Float64("ftp")
	}
	if c.IsSet("hr-max") {
		p.HRMax = c.Float64("hr-max")
	}
	if c.IsSet("hr-rest") {
		p.HRRest = c.Float64("hr-rest")
	}
	if c.IsSet("age") {
		p.Age = c.Int("age")
	}
	return p
}

// unauthenticated stands in for the Strava client until 'score auth' has run
type unauthenticated struct{}

func (unauthenticated) GetActivities(context.Context, time.Time, int, int) ([]strava.Activity, error) {
	return nil, auth.ErrNotAuthenticated
}

func (unauthenticated) GetActivityStreams(context.Context, int64) (*strava.Streams, error) {
	return nil, auth.ErrNotAuthenticated
}

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:   "dashboard",
		Usage:  "open the terminal dashboard",
		Action: runDashboard,
	}
}

var runDashboard = withRuntime(func(c *cli.Context, rt *runtime) error {
	// The TUI owns the terminal, so logs go to a file.
	dir, err := config.GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "score.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()
	log.Logger = zerolog.New(f).With().Timestamp().Logger()

	var provider service.ActivityProvider = unauthenticated{}
	client, err := newStravaClient(c, rt)
	switch {
	case err == nil:
		provider = client
	case errors.Is(err, auth.ErrNotAuthenticated), errors.Is(err, config.ErrMissingCredentials):
		log.Warn().Err(err).Msg("sync disabled")
	default:
		return err
	}

	app := tui.NewApp(rt.query, newSyncService(rt, provider), rt.scorer)
	if _, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(c.Context)).Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
})

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the JSON API and metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides server.addr"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []server.Option{server.WithMetrics(rt.metrics)}
			creds, err := config.NewEnvFileProvider(rt.cfg).Credentials()
			switch {
			case err == nil:
				state, err := auth.NewState()
				if err != nil {
					return err
				}
				opts = append(opts, server.WithOAuth(newWebOAuthConfig(creds, rt.cfg.Server.BaseURL), state))
			case errors.Is(err, config.ErrMissingCredentials):
				log.Warn().Msg("no strava credentials, /auth routes disabled")
			default:
				return err
			}

			addr := rt.cfg.Server.Addr
			if c.IsSet("addr") {
				addr = c.String("addr")
			}
			return server.New(rt.store, rt.query, rt.scorer, opts...).ListenAndServe(ctx, addr)
		}),
	}
}

func newWebOAuthConfig(creds config.Credentials, baseURL string) *oauth2.Config {
	return auth.NewOAuthConfig(creds, baseURL+"/auth/callback")
}
