package streak

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service maintains consecutive-activity counters. It never touches the
// ledger: milestone crossings are reported to the caller, which decides
// whether to pay a bonus.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// RecordActivity advances the streak and annotates the returned state with
// the milestone days this activity crossed.
func (s *Service) RecordActivity(ctx context.Context, userID uuid.UUID, t Type, milestones []int) (*State, error) {
	if !t.Valid() {
		return nil, ErrUnknownType
	}

	state, outcome, prevStreak, err := s.repo.RecordActivity(ctx, userID, t)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case OutcomeSameDay:
		// No crossing can happen on a no-op.
	case OutcomeReset, OutcomeStarted:
		state.CrossedMilestones = Crossed(0, state.CurrentStreak, milestones)
	default:
		state.CrossedMilestones = Crossed(prevStreak, state.CurrentStreak, milestones)
	}

	if outcome != OutcomeSameDay {
		log.Info().
			Str("user_id", userID.String()).
			Str("streak_type", string(t)).
			Int("current_streak", state.CurrentStreak).
			Ints("crossed", state.CrossedMilestones).
			Msg("streak activity recorded")
	}
	return state, nil
}

func (s *Service) GetState(ctx context.Context, userID uuid.UUID, t Type) (*State, error) {
	if !t.Valid() {
		return nil, ErrUnknownType
	}
	return s.repo.GetState(ctx, userID, t)
}

// ClaimMilestone moves a milestone from unlocked to claimed. Claims on a
// still-locked milestone fail with ErrNotReached, repeated claims with
// ErrAlreadyClaimed.
func (s *Service) ClaimMilestone(ctx context.Context, userID uuid.UUID, t Type, day int) error {
	if !t.Valid() {
		return ErrUnknownType
	}

	state, err := s.repo.GetState(ctx, userID, t)
	if err != nil {
		if err == ErrNotFound {
			return ErrNotReached
		}
		return err
	}
	if state.CurrentStreak < day && state.LongestStreak < day {
		return ErrNotReached
	}

	if err := s.repo.ClaimMilestone(ctx, userID, t, day); err != nil {
		return err
	}

	log.Info().Str("user_id", userID.String()).Str("streak_type", string(t)).Int("milestone_day", day).Msg("streak milestone claimed")
	return nil
}

func (s *Service) ListClaims(ctx context.Context, userID uuid.UUID, t Type) ([]MilestoneClaim, error) {
	if !t.Valid() {
		return nil, ErrUnknownType
	}
	return s.repo.ListClaims(ctx, userID, t)
}

func (s *Service) GrantFreeze(ctx context.Context, userID uuid.UUID, t Type, until time.Time) error {
	if !t.Valid() {
		return ErrUnknownType
	}
	if err := s.repo.GrantFreeze(ctx, userID, t, until); err != nil {
		return err
	}
	log.Info().Str("user_id", userID.String()).Str("streak_type", string(t)).Time("until", until).Msg("streak freeze granted")
	return nil
}
