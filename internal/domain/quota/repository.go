package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository struct {
	db *sqlx.DB
	// now is swappable for day-rollover tests
	now func() time.Time
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// NewRepositoryWithClock injects a clock; used by day-rollover tests.
func NewRepositoryWithClock(db *sqlx.DB, now func() time.Time) *Repository {
	return &Repository{db: db, now: now}
}

// TryConsume atomically increments today's counter for (user, action) and
// reports whether the attempt stayed within the limit. The bound check rides
// on the increment itself: the UPDATE arm of the upsert only fires while
// used < quota, so two concurrent calls can never both pass a last slot.
func (r *Repository) TryConsume(ctx context.Context, userID uuid.UUID, action string, limit int) (*Counter, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := r.now()
	day := DayOf(now)
	resetAt := ResetAtFor(now)

	var c Counter
	err := r.db.GetContext(ctx, &c, `
		INSERT INTO daily_action_counters (user_id, action, action_day, used, quota, reset_at)
		VALUES ($1, $2, $3, 1, $4, $5)
		ON CONFLICT (user_id, action, action_day) DO UPDATE
		SET used = daily_action_counters.used + 1, quota = EXCLUDED.quota
		WHERE daily_action_counters.used < EXCLUDED.quota
		RETURNING user_id, action, action_day, used, quota, reset_at
	`, userID, action, day, limit, resetAt)
	if errors.Is(err, sql.ErrNoRows) {
		// The WHERE guard rejected the increment: quota is spent.
		return nil, ErrQuotaExceeded
	}
	if err != nil {
		return nil, fmt.Errorf("consume quota: %w", err)
	}
	return &c, nil
}

// Release hands back one slot consumed earlier today. Used when the write
// the slot was consumed for never happened, so the caller's retry is not
// answered with a spent quota. Decrementing below zero is guarded out.
func (r *Repository) Release(ctx context.Context, userID uuid.UUID, action string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE daily_action_counters SET used = used - 1
		WHERE user_id = $1 AND action = $2 AND action_day = $3 AND used > 0
	`, userID, action, DayOf(r.now()))
	if err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	return nil
}

// Remaining returns how many attempts are left today without consuming one.
func (r *Repository) Remaining(ctx context.Context, userID uuid.UUID, action string, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var used int
	err := r.db.GetContext(ctx, &used, `
		SELECT used FROM daily_action_counters
		WHERE user_id = $1 AND action = $2 AND action_day = $3
	`, userID, action, DayOf(r.now()))
	if errors.Is(err, sql.ErrNoRows) {
		return limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota: %w", err)
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
