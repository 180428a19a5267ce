package statement

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coinloop/rewards-api/internal/domain/ledger"
)

func TestRenderCSV(t *testing.T) {
	ref := "order-1"
	created := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

	entries := []ledger.Entry{
		{
			ID:           uuid.New(),
			Kind:         ledger.KindEarned,
			Amount:       100,
			BalanceAfter: 100,
			Source:       ledger.SourceOrder,
			Description:  "Order cashback",
			ReferenceID:  &ref,
			CreatedAt:    created,
		},
		{
			ID:           uuid.New(),
			Kind:         ledger.KindSpent,
			Amount:       30,
			BalanceAfter: 70,
			Source:       ledger.SourceRedemption,
			Description:  "Redeemed at checkout",
			CreatedAt:    created.Add(time.Hour),
		},
	}

	body, err := render(entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[0][0] != "date" {
		t.Fatalf("expected header row, got %v", records[0])
	}
	if records[1][3] != "100" {
		t.Fatalf("expected credit as +100, got %s", records[1][3])
	}
	if records[2][3] != "-30" {
		t.Fatalf("expected debit as -30, got %s", records[2][3])
	}
	if records[1][6] != "order-1" {
		t.Fatalf("expected reference id in last column, got %s", records[1][6])
	}
	if records[2][6] != "" {
		t.Fatalf("expected empty reference for debit, got %s", records[2][6])
	}
}

func TestRenderEmptyStatement(t *testing.T) {
	body, err := render(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected header only, got %d rows", len(records))
	}
}

func TestExportRejectsBadMonth(t *testing.T) {
	svc := NewServiceWithClock(nil, nil, func() time.Time {
		return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	})

	// Storage is nil, which is checked first.
	if _, err := svc.Export(context.Background(), uuid.New(), "2026-02"); err != ErrNoStorage {
		t.Fatalf("expected ErrNoStorage, got %v", err)
	}
}
