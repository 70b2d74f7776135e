package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"powerscore/internal/score"
	"powerscore/internal/store"
	"powerscore/internal/strava"
)

// Sync phases
const (
	PhaseActivities = "activities"
	PhaseStreams    = "streams"
	PhaseScores     = "scores"
)

// ActivityProvider is the remote source of activities and streams
type ActivityProvider interface {
	GetActivities(ctx context.Context, after time.Time, page, perPage int) ([]strava.Activity, error)
	GetActivityStreams(ctx context.Context, activityID int64) (*strava.Streams, error)
}

// SyncOptions tunes a SyncService
type SyncOptions struct {
	PageSize    int
	StreamBatch int
	Concurrency int
}

func (o SyncOptions) withDefaults() SyncOptions {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.StreamBatch <= 0 {
		o.StreamBatch = StreamBatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// SyncService orchestrates syncing data from Strava and scoring it
type SyncService struct {
	provider ActivityProvider
	store    *store.Store
	scorer   *ScoreService
	opts     SyncOptions
}

// NewSyncService creates a new sync service
func NewSyncService(provider ActivityProvider, st *store.Store, scorer *ScoreService, opts SyncOptions) *SyncService {
	return &SyncService{
		provider: provider,
		store:    st,
		scorer:   scorer,
		opts:     opts.withDefaults(),
	}
}

// SyncProgress reports progress during sync
type SyncProgress struct {
	Phase           string // "activities", "streams", "scores"
	Total           int
	Completed       int
	CurrentActivity string
	Error           error
}

// SyncResult contains the results of a sync operation
type SyncResult struct {
	ActivitiesFetched int
	ActivitiesStored  int
	StreamsFetched    int
	ScoresComputed    int
	ScoresRejected    int
	Errors            []error
}

// SyncAll performs a full sync: activities -> streams -> scores
func (s *SyncService) SyncAll(ctx context.Context, progress chan<- SyncProgress) (*SyncResult, error) {
	if progress != nil {
		defer close(progress)
	}

	result := &SyncResult{}

	if err := s.syncActivities(ctx, progress, result); err != nil {
		return result, fmt.Errorf("syncing activities: %w", err)
	}

	if err := s.syncStreams(ctx, progress, result); err != nil {
		return result, fmt.Errorf("syncing streams: %w", err)
	}

	if err := s.computeScores(ctx, progress, result); err != nil {
		return result, fmt.Errorf("computing scores: %w", err)
	}

	log.Info().
		Int("fetched", result.ActivitiesFetched).
		Int("stored", result.ActivitiesStored).
		Int("streams", result.StreamsFetched).
		Int("scored", result.ScoresComputed).
		Int("rejected", result.ScoresRejected).
		Int("errors", len(result.Errors)).
		Msg("sync complete")
	return result, nil
}

// syncActivities fetches new activities and stores the ones recorded with power
func (s *SyncService) syncActivities(ctx context.Context, progress chan<- SyncProgress, result *SyncResult) error {
	lastSync, err := s.store.GetSyncState(ctx, store.SyncKeyLastActivity)
	if err != nil {
		return fmt.Errorf("reading sync state: %w", err)
	}
	var after time.Time
	if lastSync != "" {
		if after, err = time.Parse(time.RFC3339, lastSync); err != nil {
			log.Warn().Str("value", lastSync).Msg("ignoring unreadable sync state")
		}
	}
	newest := after

	send(progress, SyncProgress{Phase: PhaseActivities})

	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		activities, err := s.provider.GetActivities(ctx, after, page, s.opts.PageSize)
		if err != nil {
			return fmt.Errorf("fetching page %d: %w", page, err)
		}

		if len(activities) == 0 {
			break
		}

		result.ActivitiesFetched += len(activities)

		for _, a := range activities {
			if a.StartDate.After(newest) {
				newest = a.StartDate
			}
			// Only rides recorded with power can be scored
			if !a.HasPower() {
				continue
			}
			if err := s.store.UpsertActivity(ctx, convertActivity(a)); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("storing activity %d: %w", a.ID, err))
				continue
			}
			result.ActivitiesStored++
		}

		send(progress, SyncProgress{
			Phase:     PhaseActivities,
			Total:     result.ActivitiesFetched,
			Completed: result.ActivitiesStored,
		})

		if len(activities) < s.opts.PageSize {
			break // Last page
		}

		page++
	}

	if newest.After(after) {
		if err := s.store.SetSyncState(ctx, store.SyncKeyLastActivity, newest.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("saving sync state: %w", err)
		}
	}
	return nil
}

// syncStreams fetches detailed stream data for activities that need it
func (s *SyncService) syncStreams(ctx context.Context, progress chan<- SyncProgress, result *SyncResult) error {
	activities, err := s.store.GetActivitiesNeedingStreams(ctx, s.opts.StreamBatch)
	if err != nil {
		return fmt.Errorf("getting activities needing streams: %w", err)
	}

	if len(activities) == 0 {
		return nil
	}

	for i, activity := range activities {
		if err := ctx.Err(); err != nil {
			return err
		}

		send(progress, SyncProgress{
			Phase:           PhaseStreams,
			Total:           len(activities),
			Completed:       i,
			CurrentActivity: activity.Name,
		})

		streams, err := s.provider.GetActivityStreams(ctx, activity.ID)
		if err != nil {
			// Keep going; the activity is retried on the next sync
			result.Errors = append(result.Errors, fmt.Errorf("activity %d (%s): %w", activity.ID, activity.Name, err))
			continue
		}

		points := convertStreams(activity.ID, streams)
		if len(points) > 0 {
			if err := s.store.SaveStreams(ctx, activity.ID, points); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("saving streams for %d: %w", activity.ID, err))
				continue
			}
		}

		if err := s.store.MarkStreamsSynced(ctx, activity.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("marking synced for %d: %w", activity.ID, err))
			continue
		}

		result.StreamsFetched++
	}

	send(progress, SyncProgress{
		Phase:     PhaseStreams,
		Total:     len(activities),
		Completed: len(activities),
	})

	return nil
}

// computeScores scores every activity with streams but no score from the current engine
func (s *SyncService) computeScores(ctx context.Context, progress chan<- SyncProgress, result *SyncResult) error {
	activities, err := s.store.GetActivitiesNeedingScores(ctx, score.EngineVersion)
	if err != nil {
		return fmt.Errorf("getting activities needing scores: %w", err)
	}

	if len(activities) == 0 {
		return nil
	}

	ids := make([]int64, len(activities))
	for i, a := range activities {
		ids[i] = a.ID
	}

	total := len(ids)
	send(progress, SyncProgress{Phase: PhaseScores, Total: total})

	batch, err := s.scorer.ScoreBatch(ctx, ids, s.opts.Concurrency, func(completed int) {
		send(progress, SyncProgress{Phase: PhaseScores, Total: total, Completed: completed})
	})
	if err != nil {
		return err
	}

	result.ScoresComputed += len(batch.Scored)
	result.ScoresRejected += len(batch.Rejected)

	rejected := make([]int64, 0, len(batch.Rejected))
	for id := range batch.Rejected {
		rejected = append(rejected, id)
	}
	sort.Slice(rejected, func(i, j int) bool { return rejected[i] < rejected[j] })
	for _, id := range rejected {
		result.Errors = append(result.Errors, batch.Rejected[id])
	}

	return nil
}

// RateLimitStatus returns the provider's rate limit status when it tracks one
func (s *SyncService) RateLimitStatus() (shortRemaining, dailyRemaining int, ok bool) {
	rl, ok := s.provider.(interface {
		RateLimitStatus() (int, int)
	})
	if !ok {
		return 0, 0, false
	}
	shortRemaining, dailyRemaining = rl.RateLimitStatus()
	return shortRemaining, dailyRemaining, true
}

func send(progress chan<- SyncProgress, p SyncProgress) {
	if progress != nil {
		progress <- p
	}
}
