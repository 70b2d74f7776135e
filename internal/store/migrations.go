package store

import "github.com/jmoiron/sqlx"

// migrate runs all database migrations
func migrate(db *sqlx.DB) error {
	migrations := []string{
		// Authentication (singleton row)
		`CREATE TABLE IF NOT EXISTS auth (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			athlete_id INTEGER NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Activities (summary data from /athlete/activities or an imported file)
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY,
			athlete_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT 'strava',
			start_date INTEGER NOT NULL,
			distance REAL NOT NULL,
			moving_time INTEGER NOT NULL,
			elapsed_time INTEGER NOT NULL,
			total_elevation_gain REAL NOT NULL DEFAULT 0,
			average_watts REAL,
			weighted_average_watts REAL,
			device_watts INTEGER NOT NULL DEFAULT 0,
			average_heartrate REAL,
			max_heartrate REAL,
			has_heartrate INTEGER NOT NULL,
			streams_synced INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_start_date ON activities(start_date)`,

		// Streams (second-by-second data from /activities/{id}/streams)
		`CREATE TABLE IF NOT EXISTS streams (
			activity_id INTEGER NOT NULL,
			time_offset INTEGER NOT NULL,
			watts REAL,
			heartrate REAL,
			cadence REAL,
			distance REAL,
			altitude REAL,
			PRIMARY KEY (activity_id, time_offset),
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		// Athlete profile (singleton row)
		`CREATE TABLE IF NOT EXISTS athlete_profile (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			weight_kg REAL NOT NULL,
			ftp_watts REAL NOT NULL,
			hr_max REAL NOT NULL,
			hr_rest REAL NOT NULL,
			age INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		// Score history, one row per engine run
		`CREATE TABLE IF NOT EXISTS scores (
			id TEXT PRIMARY KEY,
			activity_id INTEGER NOT NULL,
			scored_at INTEGER NOT NULL,
			activity_date INTEGER NOT NULL,
			power_score REAL NOT NULL,
			volume_score REAL NOT NULL,
			intensity_score REAL NOT NULL,
			decoupling_drift REAL NOT NULL,
			penalty_applied REAL NOT NULL,
			base_score REAL NOT NULL,
			final_score REAL NOT NULL,
			rank TEXT NOT NULL,
			quality_tier TEXT NOT NULL,
			normalized_power REAL NOT NULL,
			watts_per_kg REAL NOT NULL,
			intensity_factor REAL NOT NULL,
			duration_minutes REAL NOT NULL,
			heart_rate_available INTEGER NOT NULL,
			engine_version TEXT NOT NULL,
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_scores_activity ON scores(activity_id, scored_at)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_activity_date ON scores(activity_date)`,

		// Sync State (key-value store for sync tracking)
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
