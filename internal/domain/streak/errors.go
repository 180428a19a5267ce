package streak

import "errors"

var (
	// ErrUnknownType is returned for a streak type that is not login/order/review
	ErrUnknownType = errors.New("unknown streak type")

	// ErrNotReached is returned when claiming a milestone the streak has not reached
	ErrNotReached = errors.New("milestone not reached")

	// ErrAlreadyClaimed is returned when a milestone bonus was already paid
	ErrAlreadyClaimed = errors.New("milestone already claimed")

	// ErrNotFound is returned when a user has no streak state yet
	ErrNotFound = errors.New("streak not found")
)
