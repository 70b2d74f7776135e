package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const scoreColumns = `
	sc.id, sc.activity_id, sc.scored_at, sc.activity_date,
	sc.power_score, sc.volume_score, sc.intensity_score, sc.decoupling_drift,
	sc.penalty_applied, sc.base_score, sc.final_score, sc.rank, sc.quality_tier,
	sc.normalized_power, sc.watts_per_kg, sc.intensity_factor, sc.duration_minutes,
	sc.heart_rate_available, sc.engine_version`

// latestScores restricts scores to the most recent run per activity
const latestScores = `
	sc.rowid = (
		SELECT s2.rowid FROM scores s2
		WHERE s2.activity_id = sc.activity_id
		ORDER BY s2.scored_at DESC, s2.rowid DESC
		LIMIT 1
	)`

// SaveScore appends a score run to the activity's history.
// An empty ID is filled with a new UUID and a zero ScoredAt with the current time.
func (s *Store) SaveScore(ctx context.Context, rec *ScoreRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ScoredAt.IsZero() {
		rec.ScoredAt = time.Now().UTC()
	}

	b := rec.Breakdown
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scores (
			id, activity_id, scored_at, activity_date,
			power_score, volume_score, intensity_score, decoupling_drift,
			penalty_applied, base_score, final_score, rank, quality_tier,
			normalized_power, watts_per_kg, intensity_factor, duration_minutes,
			heart_rate_available, engine_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.ActivityID, rec.ScoredAt.Unix(), rec.ActivityDate.Unix(),
		b.PowerScore, b.VolumeScore, b.IntensityScore, b.DecouplingDrift,
		b.PenaltyApplied, b.BaseScore, b.FinalScore, string(b.Rank), string(b.QualityTier),
		b.NormalizedPower, b.WattsPerKg, b.IntensityFactor, b.DurationMinutes,
		boolToInt(b.HeartRateAvailable), b.EngineVersion,
	)
	return err
}

// GetLatestScore returns the most recent score run for an activity
func (s *Store) GetLatestScore(ctx context.Context, activityID int64) (*ScoreRecord, error) {
	var row scoreRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+scoreColumns+`
		FROM scores sc
		WHERE sc.activity_id = ?
		ORDER BY sc.scored_at DESC, sc.rowid DESC
		LIMIT 1
	`, activityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := row.toRecord()
	return &rec, nil
}

// ListScoreHistory returns every score run for an activity, newest first
func (s *Store) ListScoreHistory(ctx context.Context, activityID int64) ([]ScoreRecord, error) {
	return s.selectScores(ctx, `
		SELECT `+scoreColumns+`
		FROM scores sc
		WHERE sc.activity_id = ?
		ORDER BY sc.scored_at DESC, sc.rowid DESC
	`, activityID)
}

// ListLatestScores returns the latest score of each activity ordered by
// activity date, newest first
func (s *Store) ListLatestScores(ctx context.Context, limit int) ([]ScoreRecord, error) {
	return s.selectScores(ctx, `
		SELECT `+scoreColumns+`
		FROM scores sc
		WHERE `+latestScores+`
		ORDER BY sc.activity_date DESC
		LIMIT ?
	`, limit)
}

// ListLatestScoresSince returns the latest score of each activity that
// started at or after since, oldest first
func (s *Store) ListLatestScoresSince(ctx context.Context, since time.Time) ([]ScoreRecord, error) {
	return s.selectScores(ctx, `
		SELECT `+scoreColumns+`
		FROM scores sc
		WHERE `+latestScores+`
		AND sc.activity_date >= ?
		ORDER BY sc.activity_date ASC
	`, since.Unix())
}

// GetBestScore returns the highest latest-run score across all activities
func (s *Store) GetBestScore(ctx context.Context) (*ScoreRecord, error) {
	var row scoreRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+scoreColumns+`
		FROM scores sc
		WHERE `+latestScores+`
		ORDER BY sc.final_score DESC, sc.activity_date DESC
		LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := row.toRecord()
	return &rec, nil
}

func (s *Store) selectScores(ctx context.Context, query string, args ...any) ([]ScoreRecord, error) {
	var rows []scoreRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	records := make([]ScoreRecord, len(rows))
	for i, r := range rows {
		records[i] = r.toRecord()
	}
	return records, nil
}

// GetLatestScoresFor returns the latest score of each listed activity keyed by
// activity ID. Activities without a score are absent from the map.
func (s *Store) GetLatestScoresFor(ctx context.Context, activityIDs []int64) (map[int64]*ScoreRecord, error) {
	result := make(map[int64]*ScoreRecord, len(activityIDs))
	if len(activityIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+scoreColumns+`
		FROM scores sc
		WHERE sc.activity_id IN (?)
		AND `+latestScores, activityIDs)
	if err != nil {
		return nil, err
	}

	records, err := s.selectScores(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	for i := range records {
		result[records[i].ActivityID] = &records[i]
	}
	return result, nil
}
