package streak

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// NewRepositoryWithClock injects a clock; used by continuity tests.
func NewRepositoryWithClock(db *sqlx.DB, now func() time.Time) *Repository {
	return &Repository{db: db, now: now}
}

// RecordActivity advances the streak under a row lock so two same-day
// activities cannot both increment. Returns the new state, the outcome and
// the streak value before the activity (read under the same lock).
func (r *Repository) RecordActivity(ctx context.Context, userID uuid.UUID, t Type) (*State, Outcome, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_streaks (user_id, streak_type)
		VALUES ($1, $2)
		ON CONFLICT (user_id, streak_type) DO NOTHING
	`, userID, string(t)); err != nil {
		return nil, 0, 0, fmt.Errorf("ensure streak row: %w", err)
	}

	var state State
	if err := tx.GetContext(ctx, &state, `
		SELECT user_id, streak_type, current_streak, longest_streak, last_activity_date, streak_start_date, freeze_expires_at, updated_at
		FROM user_streaks
		WHERE user_id = $1 AND streak_type = $2
		FOR UPDATE
	`, userID, string(t)); err != nil {
		return nil, 0, 0, fmt.Errorf("lock streak row: %w", err)
	}

	prevStreak := state.CurrentStreak
	outcome := Advance(&state, r.now())
	if outcome == OutcomeSameDay {
		// Idempotent for repeated same-day activity.
		return &state, outcome, prevStreak, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE user_streaks
		SET current_streak = $1, longest_streak = $2, last_activity_date = $3,
		    streak_start_date = $4, freeze_expires_at = $5, updated_at = now()
		WHERE user_id = $6 AND streak_type = $7
	`, state.CurrentStreak, state.LongestStreak, state.LastActivityDate,
		state.StreakStartDate, state.FreezeExpiresAt, userID, string(t)); err != nil {
		return nil, 0, 0, fmt.Errorf("update streak: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, 0, fmt.Errorf("commit tx: %w", err)
	}
	return &state, outcome, prevStreak, nil
}

func (r *Repository) GetState(ctx context.Context, userID uuid.UUID, t Type) (*State, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var state State
	err := r.db.GetContext(ctx, &state, `
		SELECT user_id, streak_type, current_streak, longest_streak, last_activity_date, streak_start_date, freeze_expires_at, updated_at
		FROM user_streaks
		WHERE user_id = $1 AND streak_type = $2
	`, userID, string(t))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return &state, nil
}

// ClaimMilestone inserts the claim row; the primary key makes a second claim
// fail, so the claim is one-way by construction.
func (r *Repository) ClaimMilestone(ctx context.Context, userID uuid.UUID, t Type, day int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO streak_milestone_claims (user_id, streak_type, milestone_day)
		VALUES ($1, $2, $3)
	`, userID, string(t), day)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("claim milestone: %w", err)
	}
	return nil
}

func (r *Repository) ListClaims(ctx context.Context, userID uuid.UUID, t Type) ([]MilestoneClaim, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	claims := make([]MilestoneClaim, 0)
	err := r.db.SelectContext(ctx, &claims, `
		SELECT user_id, streak_type, milestone_day, claimed_at
		FROM streak_milestone_claims
		WHERE user_id = $1 AND streak_type = $2
		ORDER BY milestone_day
	`, userID, string(t))
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// GrantFreeze sets the grace token that forgives one missed day.
func (r *Repository) GrantFreeze(ctx context.Context, userID uuid.UUID, t Type, until time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_streaks (user_id, streak_type, freeze_expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, streak_type) DO UPDATE
		SET freeze_expires_at = EXCLUDED.freeze_expires_at, updated_at = now()
	`, userID, string(t), until)
	if err != nil {
		return fmt.Errorf("grant freeze: %w", err)
	}
	return nil
}
