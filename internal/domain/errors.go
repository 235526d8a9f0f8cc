package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is matched by every EmptyInputError via errors.Is.
var ErrEmptyInput = errors.New("empty input")

// ErrLocationMismatch is returned when scores for different locations are
// classified together.
var ErrLocationMismatch = errors.New("scores belong to different locations")

// ErrMalformedSignal is returned when a message cannot be decoded as a
// location signal.
var ErrMalformedSignal = errors.New("malformed location signal")

// InsufficientDataError reports a missing or invalid input signal.
type InsufficientDataError struct {
	Location string
	Hazard   HazardType
	Factor   string
	Reason   string
}

func (e *InsufficientDataError) Error() string {
	msg := fmt.Sprintf("insufficient data: factor %q %s", e.Factor, e.Reason)
	if e.Hazard != "" {
		msg += fmt.Sprintf(" (hazard %s)", e.Hazard)
	}
	if e.Location != "" {
		msg += fmt.Sprintf(" for location %q", e.Location)
	}
	return msg
}

// ConfigurationError reports an invalid or inconsistent rules snapshot.
// Field is the dotted path of the offending setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// EmptyInputError reports that an operation received nothing to work on.
type EmptyInputError struct {
	Operation string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s: no input", e.Operation)
}

func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// MissingParameterError reports an impact parameter absent for a
// location/action pair.
type MissingParameterError struct {
	Location  string
	Action    string
	Parameter string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %q for location %q action %q", e.Parameter, e.Location, e.Action)
}

// ErrorKind returns a short label for metrics and logs.
func ErrorKind(err error) string {
	var (
		insufficient *InsufficientDataError
		configErr    *ConfigurationError
		empty        *EmptyInputError
		missing      *MissingParameterError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &insufficient):
		return "insufficient_data"
	case errors.As(err, &configErr):
		return "configuration"
	case errors.As(err, &empty):
		return "empty_input"
	case errors.As(err, &missing):
		return "missing_parameter"
	case errors.Is(err, ErrLocationMismatch):
		return "location_mismatch"
	case errors.Is(err, ErrMalformedSignal):
		return "malformed"
	default:
		return "other"
	}
}
