package rewards

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/coinloop/rewards-api/internal/domain/engagement"
	"github.com/coinloop/rewards-api/internal/domain/ledger"
)

func TestPickSegmentRespectsWeights(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	segments := []engagement.WheelSegment{
		{Coins: 0, Weight: 50},
		{Coins: 5, Weight: 30},
		{Coins: 50, Weight: 20},
	}

	counts := map[int64]int{}
	const spins = 10000
	for i := 0; i < spins; i++ {
		seg := svc.pickSegment(segments)
		counts[seg.Coins]++
	}

	// All segments should show up, roughly in weight order.
	for _, seg := range segments {
		if counts[seg.Coins] == 0 {
			t.Fatalf("segment %d never selected in %d spins", seg.Coins, spins)
		}
	}
	if !(counts[0] > counts[5] && counts[5] > counts[50]) {
		t.Fatalf("expected counts ordered by weight, got %v", counts)
	}
}

func TestPickSegmentZeroWeights(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	seg := svc.pickSegment([]engagement.WheelSegment{
		{Coins: 10, Weight: 0},
		{Coins: 20, Weight: -1},
	})
	if seg.Coins != 0 {
		t.Fatalf("expected empty segment when no weight is positive, got %d", seg.Coins)
	}
}

func TestPickSegmentConcurrent(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	segments := []engagement.WheelSegment{
		{Coins: 0, Weight: 40},
		{Coins: 5, Weight: 30},
		{Coins: 20, Weight: 30},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				seg := svc.pickSegment(segments)
				if seg.Coins != 0 && seg.Coins != 5 && seg.Coins != 20 {
					t.Errorf("unexpected segment %d", seg.Coins)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestPickSegmentSkipsNonPositiveWeights(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	segments := []engagement.WheelSegment{
		{Coins: 10, Weight: 0},
		{Coins: 20, Weight: 1},
	}
	for i := 0; i < 100; i++ {
		if seg := svc.pickSegment(segments); seg.Coins != 20 {
			t.Fatalf("expected only the weighted segment, got %d", seg.Coins)
		}
	}
}

func TestShareSocialRejectsUnknownPlatform(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	_, err := svc.ShareSocial(context.Background(), uuid.New(), "myspace")
	if !errors.Is(err, ErrInvalidPlatform) {
		t.Fatalf("expected ErrInvalidPlatform, got %v", err)
	}
}

func TestRedeemRejectsEmptyOrder(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil)

	_, err := svc.Redeem(context.Background(), uuid.New(), 50, "")
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestIsDomainError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ledger.ErrInsufficientBalance, true},
		{ledger.ErrReferenceConflict, true},
		{ledger.ErrInvalidAmount, true},
		{fmt.Errorf("wrapped: %w", ledger.ErrInsufficientBalance), true},
		{errors.New("connection refused"), false},
		{ledger.ErrUnavailable, false},
	}

	for _, tc := range cases {
		if got := isDomainError(tc.err); got != tc.want {
			t.Errorf("isDomainError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
