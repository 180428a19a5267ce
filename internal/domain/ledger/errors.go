package ledger

import "errors"

var (
	// ErrInvalidAmount is returned when the amount is zero or negative
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInvalidKind is returned for an unknown entry kind
	ErrInvalidKind = errors.New("invalid entry kind")

	// ErrInsufficientBalance is returned when a debit exceeds the current balance
	ErrInsufficientBalance = errors.New("insufficient coin balance")

	// ErrReferenceConflict is returned when a reference is replayed with different values
	ErrReferenceConflict = errors.New("reference already used with a different amount")

	// ErrNotFound is returned when an entry does not exist
	ErrNotFound = errors.New("ledger entry not found")

	// ErrUnavailable wraps persistent storage failures after the retry budget
	// is spent. Callers must re-attempt idempotently, never drop the reward.
	ErrUnavailable = errors.New("ledger unavailable")
)
