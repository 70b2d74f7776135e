package store

import (
	"context"
	"fmt"
)

// SaveStreams saves stream data for an activity
// It replaces any existing stream data for the activity
func (s *Store) SaveStreams(ctx context.Context, activityID int64, points []StreamPoint) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete existing streams for this activity
	if _, err := tx.ExecContext(ctx, "DELETE FROM streams WHERE activity_id = ?", activityID); err != nil {
		return fmt.Errorf("deleting existing streams: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO streams (activity_id, time_offset, watts, heartrate, cadence, distance, altitude)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		_, err := stmt.ExecContext(ctx,
			activityID, p.TimeOffset, p.Watts, p.Heartrate, p.Cadence, p.Distance, p.Altitude,
		)
		if err != nil {
			return fmt.Errorf("inserting stream point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// GetStreams retrieves all stream points for an activity ordered by time
func (s *Store) GetStreams(ctx context.Context, activityID int64) ([]StreamPoint, error) {
	var points []StreamPoint
	err := s.db.SelectContext(ctx, &points, `
		SELECT activity_id, time_offset, watts, heartrate, cadence, distance, altitude
		FROM streams
		WHERE activity_id = ?
		ORDER BY time_offset
	`, activityID)
	return points, err
}

// GetStreamCount returns the number of stream points for an activity
func (s *Store) GetStreamCount(ctx context.Context, activityID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM streams WHERE activity_id = ?", activityID)
	return count, err
}
