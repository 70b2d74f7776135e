package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"powerscore/internal/score"
	"powerscore/internal/store"
)

// QueryService provides read-only queries for the TUI and the HTTP API
type QueryService struct {
	store  *store.Store
	scorer *ScoreService
	now    func() time.Time
}

// NewQueryService creates a new query service
func NewQueryService(st *store.Store, scorer *ScoreService) *QueryService {
	return &QueryService{store: st, scorer: scorer, now: time.Now}
}

// ScoredRide pairs a score with the name of its activity
type ScoredRide struct {
	Name  string
	Score store.ScoreRecord
}

// DashboardData contains all data needed for the dashboard
type DashboardData struct {
	Profile score.Profile

	Latest *ScoredRide
	Best   *ScoredRide

	// Rolling window
	WindowAverage float64
	WindowCount   int
	WindowRanks   map[score.Rank]int

	// Final scores, oldest first
	Trend      []float64
	TrendDates []time.Time

	RecentActivities []store.ScoredActivity
	TotalActivities  int
}

// HasScores reports whether anything has been scored yet
func (d *DashboardData) HasScores() bool {
	return d.Latest != nil
}

// GetDashboardData fetches all data needed for the dashboard
func (q *QueryService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	profile, err := q.scorer.Profile(ctx)
	if err != nil {
		return nil, err
	}
	data := &DashboardData{Profile: profile, WindowRanks: make(map[score.Rank]int)}

	latest, err := q.store.ListLatestScores(ctx, TrendLength)
	if err != nil {
		return nil, fmt.Errorf("loading latest scores: %w", err)
	}
	if len(latest) > 0 {
		if data.Latest, err = q.scoredRide(ctx, latest[0]); err != nil {
			return nil, err
		}
	}
	for i := len(latest) - 1; i >= 0; i-- {
		data.Trend = append(data.Trend, latest[i].FinalScore)
		data.TrendDates = append(data.TrendDates, latest[i].ActivityDate)
	}

	best, err := q.store.GetBestScore(ctx)
	switch {
	case errors.Is(err, store.ErrScoreNotFound):
	case err != nil:
		return nil, fmt.Errorf("loading best score: %w", err)
	default:
		if data.Best, err = q.scoredRide(ctx, *best); err != nil {
			return nil, err
		}
	}

	since := q.now().AddDate(0, 0, -RollingWindowDays)
	window, err := q.store.ListLatestScoresSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("loading %d day scores: %w", RollingWindowDays, err)
	}
	data.WindowCount = len(window)
	data.WindowAverage = averageScore(window)
	for _, rec := range window {
		data.WindowRanks[rec.Rank]++
	}

	if data.RecentActivities, err = q.store.ListScoredActivities(ctx, RecentActivitiesLimit, 0); err != nil {
		return nil, fmt.Errorf("loading recent activities: %w", err)
	}
	if data.TotalActivities, err = q.store.CountActivities(ctx); err != nil {
		return nil, fmt.Errorf("counting activities: %w", err)
	}

	return data, nil
}

func (q *QueryService) scoredRide(ctx context.Context, rec store.ScoreRecord) (*ScoredRide, error) {
	a, err := q.store.GetActivity(ctx, rec.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("loading activity %d: %w", rec.ActivityID, err)
	}
	return &ScoredRide{Name: a.Name, Score: rec}, nil
}

func averageScore(records []store.ScoreRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var total float64
	for _, r := range records {
		total += r.FinalScore
	}
	return total / float64(len(records))
}

// ActivityPage is one page of activities with their latest scores
type ActivityPage struct {
	Activities []store.ScoredActivity
	Total      int
	Limit      int
	Offset     int
}

// GetActivities returns a page of activities, newest first
func (q *QueryService) GetActivities(ctx context.Context, limit, offset int) (*ActivityPage, error) {
	activities, err := q.store.ListScoredActivities(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := q.store.CountActivities(ctx)
	if err != nil {
		return nil, err
	}
	return &ActivityPage{Activities: activities, Total: total, Limit: limit, Offset: offset}, nil
}

// ActivityDetail is everything known about one activity
type ActivityDetail struct {
	Activity store.Activity
	Score    *store.ScoreRecord // latest run, nil if never scored
	History  []store.ScoreRecord
	Stream   StreamSummary

	// Per-minute averages, 0 where the minute has no reading
	PowerByMinute     []float64
	HeartRateByMinute []float64
}

// GetActivityDetail loads an activity with its score history and stream summary
func (q *QueryService) GetActivityDetail(ctx context.Context, id int64) (*ActivityDetail, error) {
	a, err := q.store.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := q.store.ListScoreHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading score history: %w", err)
	}

	points, err := q.store.GetStreams(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading streams: %w", err)
	}

	detail := &ActivityDetail{
		Activity:          *a,
		History:           history,
		Stream:            SummarizeStream(points),
		PowerByMinute:     minuteAverages(points, func(p store.StreamPoint) *float64 { return p.Watts }),
		HeartRateByMinute: minuteAverages(points, func(p store.StreamPoint) *float64 { return p.Heartrate }),
	}
	if len(history) > 0 {
		detail.Score = &history[0]
	}
	return detail, nil
}

// GetLatestScore returns the latest stored score of an activity
func (q *QueryService) GetLatestScore(ctx context.Context, id int64) (*store.ScoreRecord, error) {
	if _, err := q.store.GetActivity(ctx, id); err != nil {
		return nil, err
	}
	return q.store.GetLatestScore(ctx, id)
}

// GetScoreHistory returns the latest score of each activity, newest first
func (q *QueryService) GetScoreHistory(ctx context.Context, limit int) ([]store.ScoreRecord, error) {
	return q.store.ListLatestScores(ctx, limit)
}
