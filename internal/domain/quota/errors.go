package quota

import "errors"

var (
	// ErrQuotaExceeded is returned when the daily limit for an action is spent
	ErrQuotaExceeded = errors.New("daily quota exceeded")

	// ErrInvalidLimit is returned for a zero or negative daily limit
	ErrInvalidLimit = errors.New("invalid daily limit")
)
