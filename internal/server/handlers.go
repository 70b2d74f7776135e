package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"powerscore/internal/auth"
	"powerscore/internal/score"
	"powerscore/internal/service"
	"powerscore/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 200

	// roughly a day of 1 Hz samples
	defaultMaxBody = 16 << 20
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// decodeBody reads a JSON request body of at most s.maxBody bytes into v.
// It writes the error response itself and reports whether decoding succeeded.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any, strict bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	if strict {
		dec.DisallowUnknownFields()
	}
	err := dec.Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large",
			"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		return false
	}
	writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	return false
}

// writeFailure maps domain errors onto HTTP statuses
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrActivityNotFound), errors.Is(err, store.ErrScoreNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case score.IsValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, score.ErrorKind(err), err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// scoreJSON is a stored score. Diagnostics are only included for developers.
type scoreJSON struct {
	ID                 string            `json:"id"`
	ActivityID         int64             `json:"activity_id"`
	ScoredAt           time.Time         `json:"scored_at"`
	ActivityDate       time.Time         `json:"activity_date"`
	FinalScore         float64           `json:"final_score"`
	Rank               score.Rank        `json:"rank"`
	QualityTier        score.QualityTier `json:"quality_tier"`
	PowerScore         float64           `json:"power_score"`
	VolumeScore        float64           `json:"volume_score"`
	IntensityScore     float64           `json:"intensity_score"`
	DecouplingDrift    float64           `json:"decoupling_drift"`
	PenaltyApplied     float64           `json:"penalty_applied"`
	WattsPerKg         float64           `json:"watts_per_kg"`
	DurationMinutes    float64           `json:"duration_minutes"`
	HeartRateAvailable bool              `json:"heart_rate_available"`
	EngineVersion      string            `json:"engine_version"`
	Diagnostics        *diagnosticsJSON  `json:"diagnostics,omitempty"`
}

type diagnosticsJSON struct {
	NormalizedPower float64 `json:"normalized_power"`
	IntensityFactor float64 `json:"intensity_factor"`
	BaseScore       float64 `json:"base_score"`
}

func newScoreJSON(rec store.ScoreRecord, developer bool) *scoreJSON {
	out := breakdownJSON(rec.Breakdown, developer)
	out.ID = rec.ID
	out.ActivityID = rec.ActivityID
	out.ScoredAt = rec.ScoredAt
	out.ActivityDate = rec.ActivityDate
	return out
}

func breakdownJSON(b score.Breakdown, developer bool) *scoreJSON {
	out := &scoreJSON{
		FinalScore:         b.FinalScore,
		Rank:               b.Rank,
		QualityTier:        b.QualityTier,
		PowerScore:         b.PowerScore,
		VolumeScore:        b.VolumeScore,
		IntensityScore:     b.IntensityScore,
		DecouplingDrift:    b.DecouplingDrift,
		PenaltyApplied:     b.PenaltyApplied,
		WattsPerKg:         b.WattsPerKg,
		DurationMinutes:    b.DurationMinutes,
		HeartRateAvailable: b.HeartRateAvailable,
		EngineVersion:      b.EngineVersion,
	}
	if developer {
		out.Diagnostics = &diagnosticsJSON{
			NormalizedPower: b.NormalizedPower,
			IntensityFactor: b.IntensityFactor,
			BaseScore:       b.BaseScore,
		}
	}
	return out
}

type activityJSON struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	Type                 string     `json:"type"`
	Source               string     `json:"source"`
	StartDate            time.Time  `json:"start_date"`
	Distance             float64    `json:"distance"`
	MovingTime           int        `json:"moving_time"`
	AverageWatts         *float64   `json:"average_watts,omitempty"`
	WeightedAverageWatts *float64   `json:"weighted_average_watts,omitempty"`
	AverageHeartrate     *float64   `json:"average_heartrate,omitempty"`
	StreamsSynced        bool       `json:"streams_synced"`
	Score                *scoreJSON `json:"score,omitempty"`
}

func newActivityJSON(a store.Activity, rec *store.ScoreRecord, developer bool) activityJSON {
	out := activityJSON{
		ID:                   a.ID,
		Name:                 a.Name,
		Type:                 a.Type,
		Source:               a.Source,
		StartDate:            a.StartDate,
		Distance:             a.Distance,
		MovingTime:           a.MovingTime,
		AverageWatts:         a.AverageWatts,
		WeightedAverageWatts: a.WeightedAverageWatts,
		AverageHeartrate:     a.AverageHeartrate,
		StreamsSynced:        a.StreamsSynced,
	}
	if rec != nil {
		out.Score = newScoreJSON(*rec, developer)
	}
	return out
}

func (s *Server) developer(r *http.Request) (bool, error) {
	p, err := s.scorer.Profile(r.Context())
	return p.Developer, err
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "ok",
		"engine_version": score.EngineVersion,
	})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	data, err := s.query.GetDashboardData(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	dev := data.Profile.Developer
	out := struct {
		Latest          *scoreJSON         `json:"latest,omitempty"`
		LatestName      string             `json:"latest_name,omitempty"`
		Best            *scoreJSON         `json:"best,omitempty"`
		BestName        string             `json:"best_name,omitempty"`
		WindowDays      int                `json:"window_days"`
		WindowAverage   float64            `json:"window_average"`
		WindowCount     int                `json:"window_count"`
		WindowRanks     map[score.Rank]int `json:"window_ranks"`
		Trend           []float64          `json:"trend"`
		TotalActivities int                `json:"total_activities"`
	}{
		WindowDays:      service.RollingWindowDays,
		WindowAverage:   data.WindowAverage,
		WindowCount:     data.WindowCount,
		WindowRanks:     data.WindowRanks,
		Trend:           data.Trend,
		TotalActivities: data.TotalActivities,
	}
	if data.Latest != nil {
		out.Latest = newScoreJSON(data.Latest.Score, dev)
		out.LatestName = data.Latest.Name
	}
	if data.Best != nil {
		out.Best = newScoreJSON(data.Best.Score, dev)
		out.BestName = data.Best.Name
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	dev, err := s.developer(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	page, err := s.query.GetActivities(r.Context(), limit, offset)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	items := make([]activityJSON, len(page.Activities))
	for i, a := range page.Activities {
		items[i] = newActivityJSON(a.Activity, a.Score, dev)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activities": items,
		"total":      page.Total,
		"limit":      page.Limit,
		"offset":     page.Offset,
	})
}

func (s *Server) activityDetail(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	dev, err := s.developer(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	detail, err := s.query.GetActivityDetail(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	history := make([]*scoreJSON, len(detail.History))
	for i, rec := range detail.History {
		history[i] = newScoreJSON(rec, dev)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activity": newActivityJSON(detail.Activity, detail.Score, dev),
		"history":  history,
		"stream": map[string]any{
			"samples":             detail.Stream.Samples,
			"duration_seconds":    detail.Stream.DurationSeconds,
			"power_coverage":      detail.Stream.PowerCoverage(),
			"heart_rate_coverage": detail.Stream.HeartRateCoverage(),
			"average_watts":       detail.Stream.AvgPower,
			"max_watts":           detail.Stream.MaxPower,
			"average_heartrate":   detail.Stream.AvgHeartrate,
		},
	})
}

func (s *Server) latestScore(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	dev, err := s.developer(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	rec, err := s.query.GetLatestScore(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScoreJSON(*rec, dev))
}

func (s *Server) rescore(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	dev, err := s.developer(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	rec, err := s.scorer.ScoreActivity(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newScoreJSON(*rec, dev))
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit, _, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	dev, err := s.developer(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	records, err := s.query.GetScoreHistory(r.Context(), limit)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	out := make([]*scoreJSON, len(records))
	for i, rec := range records {
		out[i] = newScoreJSON(rec, dev)
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": out})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.scorer.Profile(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var p score.Profile
	if !s.decodeBody(w, r, &p, true) {
		return
	}
	if err := score.ValidateProfile(p); err != nil {
		writeFailure(w, r, err)
		return
	}

	err := s.store.SaveProfile(r.Context(), &store.Profile{
		WeightKg: p.WeightKg,
		FTPWatts: p.FTPWatts,
		HRMax:    p.HRMax,
		HRRest:   p.HRRest,
		Age:      p.Age,
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.getProfile(w, r)
}

// scoreRequest scores an ad-hoc stream. The stored profile is used when none is given.
type scoreRequest struct {
	Stream  score.Stream   `json:"stream"`
	Profile *score.Profile `json:"profile,omitempty"`
}

func (s *Server) scoreStream(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	resolved, err := s.scorer.Profile(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	profile := resolved
	if req.Profile != nil {
		profile = *req.Profile
		// Capabilities come from configuration, never from the request.
		profile.Developer = resolved.Developer
	}

	b, err := s.scorer.ScoreStream(req.Stream, profile)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdownJSON(b, profile.Developer))
}

func (s *Server) authLogin() http.Handler {
	return auth.AuthHandler(s.oauth, s.state)
}

func (s *Server) authCallback() http.Handler {
	return auth.AuthCallbackHandlerF(s.oauth, s.state, func(w http.ResponseWriter, r *http.Request, t *oauth2.Token) {
		if err := auth.SaveToken(r.Context(), s.store, t); err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "connected",
			"athlete_id": auth.ExtractAthleteID(t),
		})
	})
}

func pagination(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultLimit, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = min(limit, maxLimit)
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
