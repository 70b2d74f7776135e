package score

import "fmt"

// MinDurationSeconds is the shortest activity that can be split into two
// meaningful halves for decoupling analysis.
const MinDurationSeconds = 10 * 60

// Validated is a stream and profile that passed Validate.
// It can only be constructed by Validate.
type Validated struct {
	stream  Stream
	profile Profile
}

// Stream returns the validated stream
func (v Validated) Stream() Stream { return v.stream }

// Profile returns the validated profile
func (v Validated) Profile() Profile { return v.profile }

// Validate rejects structurally invalid input before any scoring math runs.
// Checks run in order: sample presence, power presence, duration, sample
// structure, profile.
func Validate(stream Stream, profile Profile) (Validated, error) {
	if len(stream.Samples) == 0 {
		return Validated{}, &MissingDataError{Reason: "stream has no samples"}
	}

	if !hasPower(stream.Samples) {
		return Validated{}, &MissingDataError{Reason: "stream has no power samples"}
	}

	if stream.DurationSeconds < MinDurationSeconds {
		return Validated{}, &InsufficientSampleError{
			DurationSeconds: stream.DurationSeconds,
			MinimumSeconds:  MinDurationSeconds,
		}
	}

	if err := validateSamples(stream); err != nil {
		return Validated{}, err
	}

	if err := ValidateProfile(profile); err != nil {
		return Validated{}, err
	}

	return Validated{stream: stream, profile: profile}, nil
}

func hasPower(samples []Sample) bool {
	for _, s := range samples {
		if s.Power != nil {
			return true
		}
	}
	return false
}

// validateSamples checks timestamp ordering and value ranges
func validateSamples(stream Stream) error {
	for i, s := range stream.Samples {
		if s.TimeOffset < 0 || s.TimeOffset > stream.DurationSeconds {
			return &InvalidStreamError{
				Index:  i,
				Reason: fmt.Sprintf("timestamp %d outside [0, %d]", s.TimeOffset, stream.DurationSeconds),
			}
		}
		if i > 0 {
			prev := stream.Samples[i-1].TimeOffset
			if s.TimeOffset == prev {
				return &InvalidStreamError{Index: i, Reason: fmt.Sprintf("duplicate timestamp %d", s.TimeOffset)}
			}
			if s.TimeOffset < prev {
				return &InvalidStreamError{Index: i, Reason: fmt.Sprintf("timestamp %d before %d", s.TimeOffset, prev)}
			}
		}
		if s.Power != nil && !validReading(*s.Power) {
			return &InvalidStreamError{Index: i, Reason: fmt.Sprintf("invalid power %v", *s.Power)}
		}
		if s.HeartRate != nil && !validReading(*s.HeartRate) {
			return &InvalidStreamError{Index: i, Reason: fmt.Sprintf("invalid heart rate %v", *s.HeartRate)}
		}
	}
	return nil
}

func validReading(v float64) bool {
	return isFinite(v) && v >= 0
}

// ValidateProfile rejects non-physical athlete values
func ValidateProfile(p Profile) error {
	switch {
	case !isFinite(p.WeightKg) || p.WeightKg <= 0:
		return &InvalidProfileError{Field: "weight_kg", Value: p.WeightKg, Reason: "must be > 0"}
	case !isFinite(p.FTPWatts) || p.FTPWatts <= 0:
		return &InvalidProfileError{Field: "ftp_watts", Value: p.FTPWatts, Reason: "must be > 0"}
	case !isFinite(p.HRRest) || p.HRRest < 0:
		return &InvalidProfileError{Field: "hr_rest", Value: p.HRRest, Reason: "must be >= 0"}
	case !isFinite(p.HRMax) || p.HRMax <= p.HRRest:
		return &InvalidProfileError{Field: "hr_max", Value: p.HRMax, Reason: fmt.Sprintf("must be > hr_rest (%v)", p.HRRest)}
	case p.Age <= 0:
		return &InvalidProfileError{Field: "age", Value: float64(p.Age), Reason: "must be > 0"}
	}
	return nil
}
