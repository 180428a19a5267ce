package streak

import (
	"time"

	"github.com/google/uuid"
)

// Type is a consecutive-activity category.
type Type string

const (
	TypeLogin  Type = "login"
	TypeOrder  Type = "order"
	TypeReview Type = "review"
)

// Valid reports whether the streak type is known.
func (t Type) Valid() bool {
	switch t {
	case TypeLogin, TypeOrder, TypeReview:
		return true
	}
	return false
}

// State is one row per user and streak type. Dates are UTC calendar days.
type State struct {
	UserID           uuid.UUID  `db:"user_id" json:"user_id"`
	Type             Type       `db:"streak_type" json:"streak_type"`
	CurrentStreak    int        `db:"current_streak" json:"current_streak"`
	LongestStreak    int        `db:"longest_streak" json:"longest_streak"`
	LastActivityDate *time.Time `db:"last_activity_date" json:"last_activity_date,omitempty"`
	StreakStartDate  *time.Time `db:"streak_start_date" json:"streak_start_date,omitempty"`
	FreezeExpiresAt  *time.Time `db:"freeze_expires_at" json:"freeze_expires_at,omitempty"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`

	// CrossedMilestones lists milestone days newly reached by the activity
	// that produced this state. Not persisted; the caller decides whether
	// and how to pay the bonus.
	CrossedMilestones []int `db:"-" json:"crossed_milestones,omitempty"`
}

// MilestoneClaim marks a milestone bonus as paid out. Claims are one-way.
type MilestoneClaim struct {
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	Type         Type      `db:"streak_type" json:"streak_type"`
	MilestoneDay int       `db:"milestone_day" json:"milestone_day"`
	ClaimedAt    time.Time `db:"claimed_at" json:"claimed_at"`
}
