package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository owns the transaction log and the derived balance. The cached
// balance in user_balances is only ever written inside the same row-locked
// transaction as the entry insert, so it can never drift from the log.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Append writes one entry atomically: lock the user's balance row, check the
// debit guard, insert the entry with balance_after baked in, update the cached
// balance. Two concurrent debits can never both observe the same prior
// balance because the second blocks on the row lock until the first commits.
func (r *Repository) Append(ctx context.Context, in AppendInput) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	entry, err := r.appendTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return entry, nil
}

// AppendTx appends within an external transaction. The caller must already
// hold the user's balance row lock (LockBalance) and is responsible for
// commit/rollback.
func (r *Repository) AppendTx(ctx context.Context, tx *sqlx.Tx, in AppendInput) (*Entry, error) {
	return r.appendLocked(ctx, tx, in)
}

func (r *Repository) appendTx(ctx context.Context, tx *sqlx.Tx, in AppendInput) (*Entry, error) {
	if _, err := r.LockBalance(ctx, tx, in.UserID); err != nil {
		return nil, err
	}
	return r.appendLocked(ctx, tx, in)
}

// LockBalance upserts the user's balance row and takes a FOR UPDATE lock on
// it, returning the current balance.
func (r *Repository) LockBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return 0, fmt.Errorf("ensure balance row: %w", err)
	}

	var balance int64
	if err := tx.GetContext(ctx, &balance, `SELECT balance FROM user_balances WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
		return 0, fmt.Errorf("lock balance row: %w", err)
	}
	return balance, nil
}

func (r *Repository) appendLocked(ctx context.Context, tx *sqlx.Tx, in AppendInput) (*Entry, error) {
	var balance int64
	if err := tx.GetContext(ctx, &balance, `SELECT balance FROM user_balances WHERE user_id = $1`, in.UserID); err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	if in.ReferenceID != "" {
		existing, err := r.getByReferenceTx(ctx, tx, in.UserID, in.Source, in.ReferenceID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.Amount != in.Amount || existing.Kind != in.Kind {
				return nil, ErrReferenceConflict
			}
			return existing, nil
		}
	}

	var balanceAfter int64
	if in.Kind.Credit() {
		balanceAfter = balance + in.Amount
	} else {
		if in.Amount > balance {
			return nil, ErrInsufficientBalance
		}
		balanceAfter = balance - in.Amount
	}

	entry, err := r.insertEntryTx(ctx, tx, in, balanceAfter)
	if err != nil {
		if errors.Is(err, errDuplicateReference) {
			// Lost a race on the reference index: treat as an idempotent
			// replay if the original matches.
			existing, checkErr := r.getByReferenceTx(ctx, tx, in.UserID, in.Source, in.ReferenceID)
			if checkErr != nil {
				return nil, checkErr
			}
			if existing == nil || existing.Amount != in.Amount || existing.Kind != in.Kind {
				return nil, ErrReferenceConflict
			}
			return existing, nil
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE user_balances SET balance = $1, updated_at = now() WHERE user_id = $2`, balanceAfter, in.UserID); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	return entry, nil
}

var errDuplicateReference = errors.New("duplicate reference")

func (r *Repository) insertEntryTx(ctx context.Context, tx *sqlx.Tx, in AppendInput, balanceAfter int64) (*Entry, error) {
	metadata := []byte(`{}`)
	if in.Metadata != nil {
		b, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = b
	}

	var ref interface{}
	if in.ReferenceID != "" {
		ref = in.ReferenceID
	}

	entry := Entry{
		UserID:       in.UserID,
		Kind:         in.Kind,
		Amount:       in.Amount,
		BalanceAfter: balanceAfter,
		Source:       in.Source,
		Description:  in.Description,
		Metadata:     metadata,
		ExpiresAt:    in.ExpiresAt,
	}
	if in.ReferenceID != "" {
		entry.ReferenceID = &in.ReferenceID
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (user_id, kind, amount, balance_after, source, description, metadata, reference_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, in.UserID, string(in.Kind), in.Amount, balanceAfter, string(in.Source), in.Description, metadata, ref, in.ExpiresAt)

	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, errDuplicateReference
		}
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	return &entry, nil
}

func (r *Repository) getByReferenceTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, source Source, referenceID string) (*Entry, error) {
	var entry Entry
	err := tx.GetContext(ctx, &entry, `
		SELECT id, user_id, kind, amount, balance_after, source, description, metadata, reference_id, expires_at, expired_by, created_at
		FROM ledger_entries
		WHERE user_id = $1 AND source = $2 AND reference_id = $3
		LIMIT 1
	`, userID, string(source), referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by reference: %w", err)
	}
	return &entry, nil
}

// GetBalance returns the current spendable balance, 0 for unknown users.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int64
	err := r.db.GetContext(ctx, &balance, `SELECT balance FROM user_balances WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// GetEntry returns a single entry by id.
func (r *Repository) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var entry Entry
	err := r.db.GetContext(ctx, &entry, `
		SELECT id, user_id, kind, amount, balance_after, source, description, metadata, reference_id, expires_at, expired_by, created_at
		FROM ledger_entries
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &entry, nil
}

// ListEntries returns a user's history newest-first, with optional filters.
func (r *Repository) ListEntries(ctx context.Context, userID uuid.UUID, f Filters) ([]Entry, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := "WHERE user_id = $1"
	args := []interface{}{userID}
	idx := 2

	if f.Kind != "" {
		where += fmt.Sprintf(" AND kind = $%d", idx)
		args = append(args, f.Kind)
		idx++
	}
	if f.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", idx)
		args = append(args, f.Source)
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *f.To)
		idx++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT count(*) FROM ledger_entries "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := strings.TrimSpace(fmt.Sprintf(`
		SELECT id, user_id, kind, amount, balance_after, source, description, metadata, reference_id, expires_at, expired_by, created_at
		FROM ledger_entries
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, idx, idx+1))
	args = append(args, limit, f.Offset)

	entries := make([]Entry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	return entries, total, nil
}

// ListEntriesForPeriod returns all of a user's entries inside [from, to),
// oldest-first. Used by statement exports.
func (r *Repository) ListEntriesForPeriod(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	entries := make([]Entry, 0)
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, kind, amount, balance_after, source, description, metadata, reference_id, expires_at, expired_by, created_at
		FROM ledger_entries
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC, id ASC
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list entries for period: %w", err)
	}
	return entries, nil
}
