package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const activityColumns = `
	a.id, a.athlete_id, a.name, a.type, a.source, a.start_date,
	a.distance, a.moving_time, a.elapsed_time, a.total_elevation_gain,
	a.average_watts, a.weighted_average_watts, a.device_watts,
	a.average_heartrate, a.max_heartrate, a.has_heartrate, a.streams_synced`

// UpsertActivity inserts or updates an activity.
// streams_synced is preserved on update.
func (s *Store) UpsertActivity(ctx context.Context, a *Activity) error {
	source := a.Source
	if source == "" {
		source = SourceStrava
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (
			id, athlete_id, name, type, source, start_date,
			distance, moving_time, elapsed_time, total_elevation_gain,
			average_watts, weighted_average_watts, device_watts,
			average_heartrate, max_heartrate, has_heartrate, streams_synced, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			type = excluded.type,
			source = excluded.source,
			start_date = excluded.start_date,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			elapsed_time = excluded.elapsed_time,
			total_elevation_gain = excluded.total_elevation_gain,
			average_watts = excluded.average_watts,
			weighted_average_watts = excluded.weighted_average_watts,
			device_watts = excluded.device_watts,
			average_heartrate = excluded.average_heartrate,
			max_heartrate = excluded.max_heartrate,
			has_heartrate = excluded.has_heartrate,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.AthleteID, a.Name, a.Type, source, a.StartDate.Unix(),
		a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain,
		a.AverageWatts, a.WeightedAverageWatts, boolToInt(a.DeviceWatts),
		a.AverageHeartrate, a.MaxHeartrate, boolToInt(a.HasHeartrate), boolToInt(a.StreamsSynced),
	)
	return err
}

// GetActivity retrieves an activity by ID
func (s *Store) GetActivity(ctx context.Context, id int64) (*Activity, error) {
	var row activityRow
	err := s.db.GetContext(ctx, &row, `SELECT `+activityColumns+` FROM activities a WHERE a.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, err
	}

	a := row.toActivity()
	return &a, nil
}

// ListActivities returns activities ordered by start date descending
func (s *Store) ListActivities(ctx context.Context, limit, offset int) ([]Activity, error) {
	return s.selectActivities(ctx, `
		SELECT `+activityColumns+`
		FROM activities a
		ORDER BY a.start_date DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
}

// CountActivities returns the total number of stored activities
func (s *Store) CountActivities(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM activities")
	return count, err
}

// GetActivitiesNeedingStreams returns power activities that haven't had their streams synced
func (s *Store) GetActivitiesNeedingStreams(ctx context.Context, limit int) ([]Activity, error) {
	return s.selectActivities(ctx, `
		SELECT `+activityColumns+`
		FROM activities a
		WHERE a.streams_synced = 0
		AND (a.device_watts = 1 OR a.average_watts > 0)
		ORDER BY a.start_date DESC
		LIMIT ?
	`, limit)
}

// GetActivitiesNeedingScores returns activities with streams but no score from
// the given engine version
func (s *Store) GetActivitiesNeedingScores(ctx context.Context, engineVersion string) ([]Activity, error) {
	return s.selectActivities(ctx, `
		SELECT `+activityColumns+`
		FROM activities a
		WHERE a.streams_synced = 1
		AND NOT EXISTS (
			SELECT 1 FROM scores sc
			WHERE sc.activity_id = a.id AND sc.engine_version = ?
		)
		ORDER BY a.start_date DESC
	`, engineVersion)
}

// MarkStreamsSynced marks an activity's streams as synced
func (s *Store) MarkStreamsSynced(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE activities
		SET streams_synced = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrActivityNotFound
	}
	return nil
}

// DeleteActivity removes an activity along with its streams and scores
func (s *Store) DeleteActivity(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM activities WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrActivityNotFound
	}
	return nil
}

func (s *Store) selectActivities(ctx context.Context, query string, args ...any) ([]Activity, error) {
	var rows []activityRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}

	activities := make([]Activity, len(rows))
	for i, r := range rows {
		activities[i] = r.toActivity()
	}
	return activities, nil
}

// ListScoredActivities returns a page of activities with their latest scores
func (s *Store) ListScoredActivities(ctx context.Context, limit, offset int) ([]ScoredActivity, error) {
	activities, err := s.ListActivities(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(activities))
	for i, a := range activities {
		ids[i] = a.ID
	}
	scores, err := s.GetLatestScoresFor(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading scores: %w", err)
	}

	result := make([]ScoredActivity, len(activities))
	for i, a := range activities {
		result[i] = ScoredActivity{Activity: a, Score: scores[a.ID]}
	}
	return result, nil
}
