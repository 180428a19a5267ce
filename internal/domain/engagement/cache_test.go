package engagement_test

import (
	"context"
	"testing"
	"time"

	"github.com/coinloop/rewards-api/internal/domain/engagement"
)

type countingStore struct {
	fakeStore
	configReads int
}

func (c *countingStore) GetConfig(ctx context.Context, action string) (*engagement.ActionConfig, error) {
	c.configReads++
	return c.fakeStore.GetConfig(ctx, action)
}

func TestCachedStoreFallsThroughWithoutRedis(t *testing.T) {
	inner := &countingStore{
		fakeStore: fakeStore{
			configs: map[string]*engagement.ActionConfig{
				"daily_login": {Action: "daily_login", CoinAmount: 10, Enabled: true},
			},
		},
	}
	cached := engagement.NewCachedStore(inner, nil, 10*time.Second)

	for i := 0; i < 3; i++ {
		cfg, err := cached.GetConfig(context.Background(), "daily_login")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.CoinAmount != 10 {
			t.Fatalf("expected coin amount 10, got %d", cfg.CoinAmount)
		}
	}

	// Without Redis every read must reach the inner store.
	if inner.configReads != 3 {
		t.Fatalf("expected 3 inner reads, got %d", inner.configReads)
	}

	camp, err := cached.ActiveCampaign(context.Background(), "daily_login", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if camp != nil {
		t.Fatalf("expected no campaign, got %+v", camp)
	}
}
