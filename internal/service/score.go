package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"powerscore/internal/metrics"
	"powerscore/internal/score"
	"powerscore/internal/store"
)

// ScoreOption configures a ScoreService
type ScoreOption func(*ScoreService)

// WithMetrics records engine outcomes on m
func WithMetrics(m *metrics.Manager) ScoreOption {
	return func(s *ScoreService) { s.metrics = m }
}

// WithDevelopers grants the Developer capability to the given athlete ids
func WithDevelopers(ids []int64) ScoreOption {
	return func(s *ScoreService) { s.developers = slices.Clone(ids) }
}

// ScoreService runs the score engine against stored activities
type ScoreService struct {
	store      *store.Store
	engine     score.Config
	fallback   score.Profile
	developers []int64
	metrics    *metrics.Manager
	now        func() time.Time
}

// NewScoreService creates a score service. fallback is used when no athlete
// profile has been stored yet.
func NewScoreService(st *store.Store, engine score.Config, fallback score.Profile, opts ...ScoreOption) *ScoreService {
	s := &ScoreService{
		store:    st,
		engine:   engine,
		fallback: fallback,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the engine configuration in use
func (s *ScoreService) Engine() score.Config {
	return s.engine
}

// Profile resolves the athlete profile used for scoring
func (s *ScoreService) Profile(ctx context.Context) (score.Profile, error) {
	var profile score.Profile
	p, err := s.store.GetProfile(ctx)
	switch {
	case errors.Is(err, store.ErrNoProfile):
		profile = s.fallback
	case err != nil:
		return score.Profile{}, fmt.Errorf("loading profile: %w", err)
	default:
		profile = p.ScoreProfile()
	}

	a, err := s.store.GetAuth(ctx)
	switch {
	case errors.Is(err, store.ErrNoAuth):
	case err != nil:
		return score.Profile{}, fmt.Errorf("loading athlete: %w", err)
	default:
		profile.Developer = slices.Contains(s.developers, a.AthleteID)
	}
	return profile, nil
}

// ScoreStream scores a stream without persisting anything
func (s *ScoreService) ScoreStream(stream score.Stream, profile score.Profile) (score.Breakdown, error) {
	start := time.Now()
	b, err := score.Score(stream, profile, s.engine)
	if err != nil {
		s.metrics.ObserveFailure(err)
		return score.Breakdown{}, err
	}
	s.metrics.ObserveScore(b, time.Since(start))
	return b, nil
}

// ScoreActivity scores a stored activity with the current profile and appends
// the result to its score history
func (s *ScoreService) ScoreActivity(ctx context.Context, id int64) (*store.ScoreRecord, error) {
	profile, err := s.Profile(ctx)
	if err != nil {
		return nil, err
	}
	return s.scoreActivity(ctx, id, profile)
}

func (s *ScoreService) scoreActivity(ctx context.Context, id int64, profile score.Profile) (*store.ScoreRecord, error) {
	activity, err := s.store.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}

	points, err := s.store.GetStreams(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading streams for %d: %w", id, err)
	}

	b, err := s.ScoreStream(store.ToScoreStream(points), profile)
	if err != nil {
		return nil, fmt.Errorf("scoring activity %d: %w", id, err)
	}

	rec := &store.ScoreRecord{
		ActivityID:   id,
		ScoredAt:     s.now().UTC(),
		ActivityDate: activity.StartDate,
		Breakdown:    b,
	}
	if err := s.store.SaveScore(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving score for %d: %w", id, err)
	}

	log.Debug().
		Int64("activity", id).
		Float64("score", b.FinalScore).
		Str("rank", string(b.Rank)).
		Str("tier", string(b.QualityTier)).
		Msg("scored")
	return rec, nil
}

// BatchResult is the outcome of ScoreBatch
type BatchResult struct {
	Scored   []store.ScoreRecord
	Rejected map[int64]error // activities the engine refused, keyed by id
}

// ScoreBatch scores activities concurrently. Activities the engine rejects are
// reported in Rejected; any other failure stops the batch.
func (s *ScoreService) ScoreBatch(ctx context.Context, ids []int64, concurrency int, onProgress func(completed int)) (*BatchResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	profile, err := s.Profile(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	result := &BatchResult{Rejected: make(map[int64]error)}
	completed := 0
	done := func(rec *store.ScoreRecord, id int64, err error) {
		mu.Lock()
		defer mu.Unlock()
		if rec != nil {
			result.Scored = append(result.Scored, *rec)
		} else {
			result.Rejected[id] = err
		}
		completed++
		if onProgress != nil {
			onProgress(completed)
		}
	}

	idc := make(chan int64)
	grp, ctx := errgroup.WithContext(ctx)
	for range concurrency {
		grp.Go(func() error {
			for id := range idc {
				rec, err := s.scoreActivity(ctx, id, profile)
				if err != nil && !score.IsValidationError(err) {
					return err
				}
				done(rec, id, err)
			}
			return nil
		})
	}

	err = func() error {
		defer close(idc)
		for _, id := range ids {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case idc <- id:
			}
		}
		return nil
	}()

	if werr := grp.Wait(); werr != nil {
		return result, werr
	}
	if err != nil {
		return result, err
	}

	slices.SortFunc(result.Scored, func(a, b store.ScoreRecord) int {
		return b.ActivityDate.Compare(a.ActivityDate)
	})
	return result, nil
}
