package model

import "errors"

// Engine error taxonomy. Callers branch on these with errors.Is; everything
// else is an infrastructure failure and may be retried only on read paths.
var (
	// ErrNotFound covers unknown subjects, teams, event types and bookings.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput covers malformed durations, bad timezones and
	// out-of-policy booking times (minimum notice, booking window).
	ErrInvalidInput = errors.New("invalid input")

	// ErrSlotTaken means admission lost the race for the requested window,
	// whether detected by the pre-check or by the store's exclusion
	// constraint. The caller should re-fetch availability and pick another
	// slot; retrying the same window will keep failing.
	ErrSlotTaken = errors.New("slot is no longer available")
)

// IsDomainError reports whether err is an expected business outcome rather
// than an infrastructure failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrSlotTaken)
}
