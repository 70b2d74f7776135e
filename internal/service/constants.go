package service

const (
	// Sync batching
	DefaultPageSize    = 100 // Max allowed by Strava
	StreamBatchSize    = 50  // streams fetched per sync, keeps well inside the 15 minute budget
	DefaultConcurrency = 4

	// Dashboard windows
	RollingWindowDays     = 30
	TrendLength           = 30
	RecentActivitiesLimit = 10
)
