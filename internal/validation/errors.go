// Package validation holds the local, recoverable error taxonomy shared by the
// media, options and timeline packages. None of these errors ever involve the
// backend.
package validation

import (
	"errors"
	"fmt"
)

// Reason identifies why a local check rejected user input.
type Reason string

const (
	ReasonUnsupportedType  Reason = "unsupported_type"
	ReasonTooLarge         Reason = "too_large"
	ReasonNotANumber       Reason = "not_a_number"
	ReasonOutOfRange       Reason = "out_of_range"
	ReasonInvalidTimeRange Reason = "invalid_time_range"
	ReasonUnknownFamily    Reason = "unknown_family"
	ReasonNotAPreset       Reason = "not_a_preset"
)

// Sentinel errors, one per Reason. An *Error matches its sentinel with errors.Is.
var (
	ErrUnsupportedType  = errors.New("unsupported media type")
	ErrTooLarge         = errors.New("file too large")
	ErrNotANumber       = errors.New("not a number")
	ErrOutOfRange       = errors.New("value out of range")
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrUnknownFamily    = errors.New("unknown option family")
	ErrNotAPreset       = errors.New("not an offered value")
)

var sentinels = map[Reason]error{
	ReasonUnsupportedType:  ErrUnsupportedType,
	ReasonTooLarge:         ErrTooLarge,
	ReasonNotANumber:       ErrNotANumber,
	ReasonOutOfRange:       ErrOutOfRange,
	ReasonInvalidTimeRange: ErrInvalidTimeRange,
	ReasonUnknownFamily:    ErrUnknownFamily,
	ReasonNotAPreset:       ErrNotAPreset,
}

// Error is a rejected input. Subject names what was checked (a file name, a
// family name, "time_range"); Detail is free-form context for messages.
type Error struct {
	Reason  Reason
	Subject string
	Detail  string

	// Min and Max are set for ReasonOutOfRange and ReasonTooLarge.
	Min, Max float64
}

func (e *Error) Error() string {
	msg := sentinels[e.Reason].Error()
	if e.Subject != "" {
		msg = fmt.Sprintf("%s: %s", e.Subject, msg)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return msg
}

// Is reports whether target is the sentinel for e's Reason.
func (e *Error) Is(target error) bool {
	return sentinels[e.Reason] == target
}

// New builds an *Error.
func New(reason Reason, subject, detail string) *Error {
	return &Error{Reason: reason, Subject: subject, Detail: detail}
}

// ReasonOf extracts the Reason from err, if err is (or wraps) an *Error.
func ReasonOf(err error) (Reason, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	return "", false
}
