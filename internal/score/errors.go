package score

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	ErrMissingData        = errors.New("missing activity data")
	ErrInvalidProfile     = errors.New("invalid athlete profile")
	ErrInsufficientSample = errors.New("insufficient sample")
	ErrInvalidConfig      = errors.New("invalid score config")
	ErrInvalidStream      = errors.New("invalid activity stream")
)

// MissingDataError is returned when a stream has no usable power samples
type MissingDataError struct {
	Reason string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingData, e.Reason)
}

func (e *MissingDataError) Is(target error) bool { return target == ErrMissingData }

// InvalidProfileError is returned for non-physical athlete profile values
type InvalidProfileError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("%v: %s=%v %s", ErrInvalidProfile, e.Field, e.Value, e.Reason)
}

func (e *InvalidProfileError) Is(target error) bool { return target == ErrInvalidProfile }

// InsufficientSampleError is returned when an activity is too short to analyze
type InsufficientSampleError struct {
	DurationSeconds int
	MinimumSeconds  int
}

func (e *InsufficientSampleError) Error() string {
	return fmt.Sprintf("%v: duration %ds is below the %ds minimum", ErrInsufficientSample, e.DurationSeconds, e.MinimumSeconds)
}

func (e *InsufficientSampleError) Is(target error) bool { return target == ErrInsufficientSample }

// InvalidConfigError is returned by NewConfig. It is a startup failure, not a per-call one.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *InvalidConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// InvalidStreamError is returned when the sample sequence is structurally broken
type InvalidStreamError struct {
	Index  int
	Reason string
}

func (e *InvalidStreamError) Error() string {
	return fmt.Sprintf("%v: sample %d %s", ErrInvalidStream, e.Index, e.Reason)
}

func (e *InvalidStreamError) Is(target error) bool { return target == ErrInvalidStream }

// ErrorKind returns a short label for an engine error, or "internal" for anything else.
// Used as a metrics label and in API error bodies.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingData):
		return "missing_data"
	case errors.Is(err, ErrInvalidProfile):
		return "invalid_profile"
	case errors.Is(err, ErrInsufficientSample):
		return "insufficient_sample"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrInvalidStream):
		return "invalid_stream"
	default:
		return "internal"
	}
}

// IsValidationError reports whether err is one of the engine's input validation failures
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingData) ||
		errors.Is(err, ErrInvalidProfile) ||
		errors.Is(err, ErrInsufficientSample) ||
		errors.Is(err, ErrInvalidStream)
}
