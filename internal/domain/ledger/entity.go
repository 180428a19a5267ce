package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a ledger entry. The amount is always a positive magnitude;
// the kind determines the sign applied to the balance.
type Kind string

const (
	KindEarned   Kind = "earned"
	KindSpent    Kind = "spent"
	KindExpired  Kind = "expired"
	KindRefunded Kind = "refunded"
	KindBonus    Kind = "bonus"
)

// Credit reports whether the kind increases the balance.
func (k Kind) Credit() bool {
	switch k {
	case KindEarned, KindRefunded, KindBonus:
		return true
	}
	return false
}

// Valid reports whether the kind is a known entry kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEarned, KindSpent, KindExpired, KindRefunded, KindBonus:
		return true
	}
	return false
}

// Source identifies the adapter that originated an entry.
type Source string

const (
	SourceOrder       Source = "order"
	SourceReferral    Source = "referral"
	SourceAchievement Source = "achievement"
	SourceSpinWheel   Source = "spin_wheel"
	SourceDailyLogin  Source = "daily_login"
	SourceSocialShare Source = "social_share"
	SourceAdmin       Source = "admin"
	SourceRedemption  Source = "redemption"
	SourceExpiry      Source = "expiry"
)

// Entry is one immutable coin movement. Entries are never updated or deleted;
// the only post-insert write is the expired_by claim made by the sweeper.
type Entry struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	Kind         Kind            `db:"kind" json:"kind"`
	Amount       int64           `db:"amount" json:"amount"`
	BalanceAfter int64           `db:"balance_after" json:"balance_after"`
	Source       Source          `db:"source" json:"source"`
	Description  string          `db:"description" json:"description"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	ReferenceID  *string         `db:"reference_id" json:"reference_id,omitempty"`
	ExpiresAt    *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	ExpiredBy    *uuid.UUID      `db:"expired_by" json:"-"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// SignedAmount returns the amount with the sign implied by the kind.
func (e *Entry) SignedAmount() int64 {
	if e.Kind.Credit() {
		return e.Amount
	}
	return -e.Amount
}

// AppendInput describes a new entry for the single write path.
type AppendInput struct {
	UserID      uuid.UUID
	Kind        Kind
	Amount      int64
	Source      Source
	Description string
	Metadata    map[string]interface{}
	// ReferenceID makes the append idempotent per (user, source, reference):
	// a retry with the same reference returns the original entry.
	ReferenceID string
	ExpiresAt   *time.Time
}

// Filters narrows history listings.
type Filters struct {
	Kind   string
	Source string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
