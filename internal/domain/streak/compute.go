package streak

import "time"

// Outcome describes what an activity did to a streak.
type Outcome int

const (
	// OutcomeSameDay means the activity repeated within the same UTC day; no-op.
	OutcomeSameDay Outcome = iota
	// OutcomeStarted means a fresh streak began at 1.
	OutcomeStarted
	// OutcomeContinued means the streak grew by one.
	OutcomeContinued
	// OutcomeFrozeUsed means a gap was forgiven by consuming the freeze.
	OutcomeFrozeUsed
	// OutcomeReset means the gap broke the streak back to 1.
	OutcomeReset
)

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (UTC-truncated).
func DaysBetween(a, b time.Time) int {
	return int(DayOf(b).Sub(DayOf(a)).Hours() / 24)
}

// Advance applies one activity at "now" to the state, in place.
//
// The streak only grows when the gap since the last activity is exactly one
// day, or when a larger gap is covered by an unexpired freeze; the freeze is
// consumed exactly once. Any other gap resets to 1.
func Advance(s *State, now time.Time) Outcome {
	today := DayOf(now)

	if s.LastActivityDate == nil {
		s.CurrentStreak = 1
		s.StreakStartDate = &today
		s.LastActivityDate = &today
		bumpLongest(s)
		return OutcomeStarted
	}

	diff := DaysBetween(*s.LastActivityDate, now)
	switch {
	case diff <= 0:
		return OutcomeSameDay

	case diff == 1:
		s.CurrentStreak++
		s.LastActivityDate = &today
		bumpLongest(s)
		return OutcomeContinued

	default: // diff > 1
		if s.FreezeExpiresAt != nil && s.FreezeExpiresAt.After(now) {
			s.CurrentStreak++
			s.LastActivityDate = &today
			s.FreezeExpiresAt = nil
			bumpLongest(s)
			return OutcomeFrozeUsed
		}
		s.CurrentStreak = 1
		s.StreakStartDate = &today
		s.LastActivityDate = &today
		bumpLongest(s)
		return OutcomeReset
	}
}

func bumpLongest(s *State) {
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
}

// Crossed returns the milestone days inside (before, after].
func Crossed(before, after int, milestones []int) []int {
	var crossed []int
	for _, day := range milestones {
		if day > before && day <= after {
			crossed = append(crossed, day)
		}
	}
	return crossed
}
