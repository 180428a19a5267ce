package rewards

import (
	"time"

	"github.com/google/uuid"

	"github.com/coinloop/rewards-api/internal/domain/ledger"
)

// Award is the common result of a reward source crediting coins.
type Award struct {
	Entry      *ledger.Entry `json:"entry,omitempty"`
	Coins      int64         `json:"coins"`
	Balance    int64         `json:"balance"`
	Multiplier float64       `json:"multiplier,omitempty"`
}

// SpinResult carries the outcome of a wheel spin. Coins is zero when the
// wheel lands on an empty segment; the spin still consumes quota.
type SpinResult struct {
	Segment    string        `json:"segment"`
	Coins      int64         `json:"coins"`
	Balance    int64         `json:"balance"`
	Entry      *ledger.Entry `json:"entry,omitempty"`
	SpinsLeft  int           `json:"spins_left"`
	Multiplier float64       `json:"multiplier,omitempty"`
}

// CheckInResult is returned by the daily check-in.
type CheckInResult struct {
	Coins         int64            `json:"coins"`
	Balance       int64            `json:"balance"`
	CurrentStreak int              `json:"current_streak"`
	LongestStreak int              `json:"longest_streak"`
	Milestones    []MilestoneAward `json:"milestones,omitempty"`
	Entry         *ledger.Entry    `json:"entry,omitempty"`
}

// MilestoneAward records a streak milestone bonus paid out during check-in.
type MilestoneAward struct {
	Day   int   `json:"day"`
	Bonus int64 `json:"bonus"`
}

// RedeemResult is returned when coins are spent against an order.
type RedeemResult struct {
	Entry   *ledger.Entry `json:"entry"`
	Balance int64         `json:"balance"`
}

// GrantInput is the admin grant/revoke request.
type GrantInput struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Amount int64     `json:"amount" validate:"required,gt=0"`
	Reason string    `json:"reason" validate:"required,min=3,max=255"`
}

// QuotaStatus reports how many rate-limited actions a user has left today.
type QuotaStatus struct {
	Action    string    `json:"action"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
