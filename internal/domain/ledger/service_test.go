package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/coinloop/rewards-api/internal/domain/ledger"
)

func TestAppendRejectsInvalidInput(t *testing.T) {
	// Validation happens before any storage access.
	svc := ledger.NewService(nil)

	_, err := svc.Append(context.Background(), ledger.AppendInput{
		UserID: uuid.New(),
		Kind:   ledger.KindEarned,
		Amount: 0,
		Source: ledger.SourceOrder,
	})
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	_, err = svc.Append(context.Background(), ledger.AppendInput{
		UserID: uuid.New(),
		Kind:   ledger.KindEarned,
		Amount: -5,
		Source: ledger.SourceOrder,
	})
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative amount, got %v", err)
	}

	_, err = svc.Append(context.Background(), ledger.AppendInput{
		UserID: uuid.New(),
		Kind:   ledger.Kind("granted"),
		Amount: 10,
		Source: ledger.SourceOrder,
	})
	if !errors.Is(err, ledger.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestSignedAmount(t *testing.T) {
	credit := ledger.Entry{Kind: ledger.KindEarned, Amount: 40}
	if credit.SignedAmount() != 40 {
		t.Fatalf("expected +40, got %d", credit.SignedAmount())
	}

	debit := ledger.Entry{Kind: ledger.KindSpent, Amount: 40}
	if debit.SignedAmount() != -40 {
		t.Fatalf("expected -40, got %d", debit.SignedAmount())
	}

	expired := ledger.Entry{Kind: ledger.KindExpired, Amount: 15}
	if expired.SignedAmount() != -15 {
		t.Fatalf("expected -15, got %d", expired.SignedAmount())
	}

	refunded := ledger.Entry{Kind: ledger.KindRefunded, Amount: 15}
	if refunded.SignedAmount() != 15 {
		t.Fatalf("expected +15, got %d", refunded.SignedAmount())
	}
}
