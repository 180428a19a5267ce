package quota

import (
	"time"

	"github.com/google/uuid"
)

// Counter is one row per user, action and UTC calendar day. Rows for past
// days are never deleted; the day key naturally supersedes them, which keeps
// the usage history around for analytics.
type Counter struct {
	UserID  uuid.UUID `db:"user_id" json:"user_id"`
	Action  string    `db:"action" json:"action"`
	Day     time.Time `db:"action_day" json:"day"`
	Used    int       `db:"used" json:"used"`
	Quota   int       `db:"quota" json:"limit"`
	ResetAt time.Time `db:"reset_at" json:"reset_at"`
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ResetAtFor returns the UTC midnight after t, when the day's counter lapses.
func ResetAtFor(t time.Time) time.Time {
	return DayOf(t).AddDate(0, 0, 1)
}
