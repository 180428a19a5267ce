package expiry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coinloop/rewards-api/internal/domain/events"
	"github.com/coinloop/rewards-api/internal/domain/ledger"
)

// Publisher pushes expiry notifications to connected clients.
type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	RunID          uuid.UUID `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	UsersSwept     int       `json:"users_swept"`
	UsersFailed    int       `json:"users_failed"`
	EntriesExpired int       `json:"entries_expired"`
	AmountExpired  int64     `json:"amount_expired"`
}

// Service walks expirable earned coins and converts them into compensating
// debit entries. Each user is an independent transaction: one user failing
// never blocks the rest, and an interrupt between users leaves no partial
// state behind.
type Service struct {
	repo      *Repository
	publisher Publisher
	now       func() time.Time
}

func NewService(repo *Repository, pub Publisher) *Service {
	return &Service{repo: repo, publisher: pub, now: time.Now}
}

// NewServiceWithClock injects a clock; used by sweep tests.
func NewServiceWithClock(repo *Repository, pub Publisher, now func() time.Time) *Service {
	return &Service{repo: repo, publisher: pub, now: now}
}

// Sweep expires every eligible entry. Re-running it is a no-op for entries
// already claimed by an earlier run.
func (s *Service) Sweep(ctx context.Context, retentionDays int) (*SweepResult, error) {
	now := s.now().UTC()
	result := &SweepResult{
		RunID:     uuid.New(),
		StartedAt: now,
	}
	retentionCutoff := now.AddDate(0, 0, -retentionDays)

	users, err := s.repo.UsersWithExpirable(ctx, now, retentionCutoff)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", result.RunID.String()).
		Int("users", len(users)).
		Int("retention_days", retentionDays).
		Msg("expiry sweep started")

	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			// Interrupted between users: everything committed so far stands.
			log.Warn().Str("run_id", result.RunID.String()).Msg("expiry sweep interrupted")
			break
		}

		count, total, remaining, err := s.repo.SweepUser(ctx, result.RunID, userID, now, retentionCutoff)
		if err != nil {
			result.UsersFailed++
			log.Error().Err(err).
				Str("run_id", result.RunID.String()).
				Str("user_id", userID.String()).
				Msg("expiry sweep failed for user, continuing")
			continue
		}

		result.UsersSwept++
		result.EntriesExpired += count
		result.AmountExpired += total

		// Post-commit, best effort: a lost frame only delays the client
		// until its next balance fetch.
		if s.publisher != nil && total > 0 {
			s.publisher.Publish(ctx, events.Event{
				Type:    events.EventCoinsExpired,
				UserID:  userID,
				Amount:  total,
				Balance: remaining,
				Source:  string(ledger.SourceExpiry),
				Data:    map[string]interface{}{"entries_expired": count, "sweep_run_id": result.RunID.String()},
			})
		}
	}

	result.FinishedAt = s.now().UTC()
	log.Info().
		Str("run_id", result.RunID.String()).
		Int("users_swept", result.UsersSwept).
		Int("users_failed", result.UsersFailed).
		Int("entries_expired", result.EntriesExpired).
		Int64("amount_expired", result.AmountExpired).
		Msg("expiry sweep finished")
	return result, nil
}
