package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetProfile returns the stored athlete profile, or ErrNoProfile
func (s *Store) GetProfile(ctx context.Context) (*Profile, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, `
		SELECT weight_kg, ftp_watts, hr_max, hr_rest, age, updated_at
		FROM athlete_profile
		WHERE id = 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoProfile
	}
	if err != nil {
		return nil, err
	}

	return &Profile{
		WeightKg:  row.WeightKg,
		FTPWatts:  row.FTPWatts,
		HRMax:     row.HRMax,
		HRRest:    row.HRRest,
		Age:       row.Age,
		UpdatedAt: time.Unix(row.UpdatedAt, 0).UTC(),
	}, nil
}

// SaveProfile stores or replaces the athlete profile
func (s *Store) SaveProfile(ctx context.Context, p *Profile) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO athlete_profile (id, weight_kg, ftp_watts, hr_max, hr_rest, age, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			weight_kg = excluded.weight_kg,
			ftp_watts = excluded.ftp_watts,
			hr_max = excluded.hr_max,
			hr_rest = excluded.hr_rest,
			age = excluded.age,
			updated_at = excluded.updated_at
	`, p.WeightKg, p.FTPWatts, p.HRMax, p.HRRest, p.Age, updatedAt.Unix())
	return err
}
