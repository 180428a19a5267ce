package streak

import (
	"testing"
	"time"
)

func at(day int, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func TestAdvanceConsecutiveDays(t *testing.T) {
	s := &State{}

	if got := Advance(s, at(1, 9)); got != OutcomeStarted {
		t.Fatalf("day 1: expected OutcomeStarted, got %v", got)
	}
	if got := Advance(s, at(2, 23)); got != OutcomeContinued {
		t.Fatalf("day 2: expected OutcomeContinued, got %v", got)
	}
	if got := Advance(s, at(3, 0)); got != OutcomeContinued {
		t.Fatalf("day 3: expected OutcomeContinued, got %v", got)
	}

	if s.CurrentStreak != 3 {
		t.Fatalf("expected streak 3, got %d", s.CurrentStreak)
	}
	if s.LongestStreak != 3 {
		t.Fatalf("expected longest 3, got %d", s.LongestStreak)
	}
}

func TestAdvanceSameDayIsNoOp(t *testing.T) {
	s := &State{}
	Advance(s, at(1, 8))

	if got := Advance(s, at(1, 22)); got != OutcomeSameDay {
		t.Fatalf("expected OutcomeSameDay, got %v", got)
	}
	if s.CurrentStreak != 1 {
		t.Fatalf("expected streak unchanged at 1, got %d", s.CurrentStreak)
	}
}

func TestAdvanceGapResets(t *testing.T) {
	s := &State{}
	Advance(s, at(1, 9))
	Advance(s, at(2, 9))

	if got := Advance(s, at(5, 9)); got != OutcomeReset {
		t.Fatalf("expected OutcomeReset, got %v", got)
	}
	if s.CurrentStreak != 1 {
		t.Fatalf("expected streak reset to 1, got %d", s.CurrentStreak)
	}
	if s.LongestStreak != 2 {
		t.Fatalf("expected longest preserved at 2, got %d", s.LongestStreak)
	}
}

func TestAdvanceFreezeCoversOneGap(t *testing.T) {
	s := &State{}
	Advance(s, at(1, 9))
	Advance(s, at(2, 9))
	Advance(s, at(3, 9))

	freezeUntil := at(10, 0)
	s.FreezeExpiresAt = &freezeUntil

	// Day 4 skipped; the freeze bridges the gap.
	if got := Advance(s, at(5, 9)); got != OutcomeFrozeUsed {
		t.Fatalf("expected OutcomeFrozeUsed, got %v", got)
	}
	if s.CurrentStreak != 4 {
		t.Fatalf("expected streak 4 after freeze, got %d", s.CurrentStreak)
	}
	if s.FreezeExpiresAt != nil {
		t.Fatal("expected freeze consumed")
	}

	// A second gap without a freeze resets.
	if got := Advance(s, at(8, 9)); got != OutcomeReset {
		t.Fatalf("expected OutcomeReset after freeze spent, got %v", got)
	}
}

func TestAdvanceExpiredFreezeDoesNotSave(t *testing.T) {
	s := &State{}
	Advance(s, at(1, 9))
	Advance(s, at(2, 9))

	expired := at(3, 0)
	s.FreezeExpiresAt = &expired

	if got := Advance(s, at(4, 9)); got != OutcomeReset {
		t.Fatalf("expected OutcomeReset with expired freeze, got %v", got)
	}
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 1 {
		t.Fatalf("expected 1 day, got %d", got)
	}

	// Local timezones must not shift the day boundary.
	loc := time.FixedZone("UTC+5", 5*3600)
	c := time.Date(2026, 3, 2, 3, 0, 0, 0, loc) // 2026-03-01T22:00Z
	if got := DaysBetween(a, c); got != 0 {
		t.Fatalf("expected 0 days, got %d", got)
	}
}

func TestCrossed(t *testing.T) {
	milestones := []int{7, 30, 100}

	if got := Crossed(6, 7, milestones); len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected [7], got %v", got)
	}
	if got := Crossed(7, 8, milestones); got != nil {
		t.Fatalf("expected no crossing, got %v", got)
	}
	if got := Crossed(0, 35, milestones); len(got) != 2 {
		t.Fatalf("expected [7 30], got %v", got)
	}
	if got := Crossed(3, 5, milestones); got != nil {
		t.Fatalf("expected no crossing below first milestone, got %v", got)
	}
}
