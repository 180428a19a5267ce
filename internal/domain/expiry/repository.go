package expiry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coinloop/rewards-api/internal/domain/ledger"
)

const queryTimeout = 30 * time.Second

// Repository performs the per-user sweep transactions. It writes to the
// ledger only through the ledger repository, inside the same row-locked
// transaction that claims the entries.
type Repository struct {
	db     *sqlx.DB
	ledger *ledger.Repository
}

func NewRepository(db *sqlx.DB, ledgerRepo *ledger.Repository) *Repository {
	return &Repository{db: db, ledger: ledgerRepo}
}

// UsersWithExpirable returns the users holding at least one eligible entry.
// An entry is eligible when its expires_at has passed, or, for entries
// written before per-action expiry existed (expires_at NULL), when it is
// older than the retention window.
func (r *Repository) UsersWithExpirable(ctx context.Context, now time.Time, retentionCutoff time.Time) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	users := make([]uuid.UUID, 0)
	err := r.db.SelectContext(ctx, &users, `
		SELECT DISTINCT user_id FROM ledger_entries
		WHERE kind IN ('earned', 'bonus')
		  AND expired_by IS NULL
		  AND (
		        (expires_at IS NOT NULL AND expires_at <= $1)
		     OR (expires_at IS NULL AND created_at <= $2)
		  )
	`, now, retentionCutoff)
	if err != nil {
		return nil, fmt.Errorf("list users with expirable entries: %w", err)
	}
	return users, nil
}

// SweepUser expires all of one user's eligible entries in a single
// transaction and returns the number of entries debited, the total amount,
// and the balance left after the sweep.
// Each entry is claimed with an atomic conditional update before
// its compensating debit is appended, so a concurrent or repeated sweep
// cannot double-debit it.
func (r *Repository) SweepUser(ctx context.Context, runID, userID uuid.UUID, now time.Time, retentionCutoff time.Time) (count int, total, remaining int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Serialize against concurrent appends for this user.
	balance, err := r.ledger.LockBalance(ctx, tx, userID)
	if err != nil {
		return 0, 0, 0, err
	}

	var eligible []ledger.Entry
	if err := tx.SelectContext(ctx, &eligible, `
		SELECT id, user_id, kind, amount, balance_after, source, description, metadata, reference_id, expires_at, expired_by, created_at
		FROM ledger_entries
		WHERE user_id = $1
		  AND kind IN ('earned', 'bonus')
		  AND expired_by IS NULL
		  AND (
		        (expires_at IS NOT NULL AND expires_at <= $2)
		     OR (expires_at IS NULL AND created_at <= $3)
		  )
		ORDER BY created_at ASC
	`, userID, now, retentionCutoff); err != nil {
		return 0, 0, 0, fmt.Errorf("list eligible entries: %w", err)
	}

	for i := range eligible {
		entry := &eligible[i]

		// Claim before debiting: the conditional update is the guard that
		// makes a second sweep (or a racing one) a no-op for this entry.
		res, err := tx.ExecContext(ctx, `
			UPDATE ledger_entries SET expired_by = $1
			WHERE id = $2 AND expired_by IS NULL
		`, runID, entry.ID)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("claim entry %s: %w", entry.ID, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return 0, 0, 0, fmt.Errorf("claim entry %s: %w", entry.ID, err)
		}
		if rows == 0 {
			continue
		}

		// Expiry only removes what was never spent: the debit is clamped to
		// the remaining balance.
		debit := entry.Amount
		if debit > balance {
			debit = balance
		}
		if debit == 0 {
			continue
		}

		if _, err := r.ledger.AppendTx(ctx, tx, ledger.AppendInput{
			UserID:      userID,
			Kind:        ledger.KindExpired,
			Amount:      debit,
			Source:      ledger.SourceExpiry,
			Description: "coins expired",
			Metadata: map[string]interface{}{
				"original_entry_id": entry.ID.String(),
				"sweep_run_id":      runID.String(),
			},
		}); err != nil {
			return 0, 0, 0, fmt.Errorf("append compensating debit for %s: %w", entry.ID, err)
		}

		balance -= debit
		count++
		total += debit
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, fmt.Errorf("commit tx: %w", err)
	}
	return count, total, balance, nil
}
