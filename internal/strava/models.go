package strava

import "time"

// Activity represents a Strava activity from the API
type Activity struct {
	ID                   int64     `json:"id"`
	Athlete              Athlete   `json:"athlete"`
	Name                 string    `json:"name"`
	Type                 string    `json:"type"`
	SportType            string    `json:"sport_type"`
	StartDate            time.Time `json:"start_date"`
	Distance             float64   `json:"distance"`             // meters
	MovingTime           int       `json:"moving_time"`          // seconds
	ElapsedTime          int       `json:"elapsed_time"`         // seconds
	TotalElevationGain   float64   `json:"total_elevation_gain"` // meters
	AverageWatts         float64   `json:"average_watts"`
	WeightedAverageWatts float64   `json:"weighted_average_watts"`
	Kilojoules           float64   `json:"kilojoules"`
	DeviceWatts          bool      `json:"device_watts"`
	AverageHeartrate     float64   `json:"average_heartrate"` // bpm
	MaxHeartrate         float64   `json:"max_heartrate"`     // bpm
	HasHeartrate         bool      `json:"has_heartrate"`
}

// HasPower reports whether the activity carries power data worth scoring
func (a *Activity) HasPower() bool {
	return a.DeviceWatts || a.AverageWatts > 0
}

// Athlete represents a Strava athlete
type Athlete struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username,omitempty"`
	Firstname string  `json:"firstname,omitempty"`
	Lastname  string  `json:"lastname,omitempty"`
	Weight    float64 `json:"weight,omitempty"` // kg
	FTP       float64 `json:"ftp,omitempty"`
}

// Streams represents activity stream data from the API
// Strava returns streams keyed by type when key_by_type=true
type Streams struct {
	Time      *StreamData[int]      `json:"time"`
	Watts     *StreamData[*float64] `json:"watts"` // null where the meter dropped out
	Heartrate *StreamData[float64]  `json:"heartrate"`
	Cadence   *StreamData[float64]  `json:"cadence"`
	Distance  *StreamData[float64]  `json:"distance"`
	Altitude  *StreamData[float64]  `json:"altitude"`
}

// StreamData represents a single stream type
type StreamData[T any] struct {
	Data         []T    `json:"data"`
	SeriesType   string `json:"series_type"`
	OriginalSize int    `json:"original_size"`
	Resolution   string `json:"resolution"`
}

// Len returns the length of the stream, or 0 if nil
func (s *Streams) Len() int {
	if s == nil || s.Time == nil {
		return 0
	}
	return len(s.Time.Data)
}

// HasHeartrate returns true if heartrate data exists
func (s *Streams) HasHeartrate() bool {
	return s != nil && s.Heartrate != nil && len(s.Heartrate.Data) > 0
}

// HasWatts returns true if power data exists
func (s *Streams) HasWatts() bool {
	return s != nil && s.Watts != nil && len(s.Watts.Data) > 0
}
