package engagement_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/coinloop/rewards-api/internal/domain/engagement"
)

type fakeStore struct {
	configs   map[string]*engagement.ActionConfig
	campaigns map[string]*engagement.Campaign
}

func (f *fakeStore) GetConfig(ctx context.Context, action string) (*engagement.ActionConfig, error) {
	cfg, ok := f.configs[action]
	if !ok {
		return nil, engagement.ErrUnknownAction
	}
	return cfg, nil
}

func (f *fakeStore) ActiveCampaign(ctx context.Context, action string, now time.Time) (*engagement.Campaign, error) {
	c := f.campaigns[action]
	if c == nil || !c.Active(now) {
		return nil, nil
	}
	return c, nil
}

func TestEffectiveRewardBaseAmount(t *testing.T) {
	store := &fakeStore{
		configs: map[string]*engagement.ActionConfig{
			"daily_login": {Action: "daily_login", DailyLimit: 1, CoinAmount: 10, ExpiryDays: 90, Enabled: true},
		},
	}
	svc := engagement.NewService(store, nil)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	reward, err := svc.EffectiveReward(context.Background(), "daily_login", 0, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reward.Amount != 10 {
		t.Fatalf("expected amount 10, got %d", reward.Amount)
	}
	if reward.Multiplier != 1.0 {
		t.Fatalf("expected multiplier 1.0, got %v", reward.Multiplier)
	}
	if reward.ExpiresAt == nil {
		t.Fatal("expected expiry horizon set")
	}
	wantExpiry := now.AddDate(0, 0, 90)
	if !reward.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry %v, got %v", wantExpiry, reward.ExpiresAt)
	}
}

func TestEffectiveRewardCampaignMultiplier(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		configs: map[string]*engagement.ActionConfig{
			"order": {Action: "order", CoinAmount: 0, Enabled: true},
		},
		campaigns: map[string]*engagement.Campaign{
			"order": {Action: "order", Multiplier: 2.5, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
		},
	}
	svc := engagement.NewService(store, nil)

	reward, err := svc.EffectiveReward(context.Background(), "order", 20, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reward.Amount != 50 {
		t.Fatalf("expected 20 * 2.5 = 50, got %d", reward.Amount)
	}
	if reward.Multiplier != 2.5 {
		t.Fatalf("expected multiplier 2.5, got %v", reward.Multiplier)
	}
}

func TestEffectiveRewardExpiredCampaignIgnored(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		configs: map[string]*engagement.ActionConfig{
			"order": {Action: "order", CoinAmount: 0, Enabled: true},
		},
		campaigns: map[string]*engagement.Campaign{
			"order": {Action: "order", Multiplier: 3, StartsAt: now.Add(-48 * time.Hour), EndsAt: now.Add(-time.Hour)},
		},
	}
	svc := engagement.NewService(store, nil)

	reward, err := svc.EffectiveReward(context.Background(), "order", 20, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reward.Amount != 20 {
		t.Fatalf("expected base 20 with lapsed campaign, got %d", reward.Amount)
	}
}

func TestLookupDisabledAction(t *testing.T) {
	store := &fakeStore{
		configs: map[string]*engagement.ActionConfig{
			"social_share": {Action: "social_share", CoinAmount: 5, Enabled: false},
		},
	}
	svc := engagement.NewService(store, nil)

	_, err := svc.Lookup(context.Background(), "social_share")
	if !errors.Is(err, engagement.ErrActionDisabled) {
		t.Fatalf("expected ErrActionDisabled, got %v", err)
	}

	_, err = svc.Lookup(context.Background(), "nonexistent")
	if !errors.Is(err, engagement.ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestParseSpinWheelMeta(t *testing.T) {
	cfg := &engagement.ActionConfig{
		Action:   "spin_wheel",
		Metadata: json.RawMessage(`{"segments":[{"coins":0,"weight":50},{"coins":5,"weight":30},{"coins":50,"weight":20}]}`),
	}

	meta, err := engagement.ParseSpinWheelMeta(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meta.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(meta.Segments))
	}

	empty := &engagement.ActionConfig{Action: "spin_wheel"}
	if _, err := engagement.ParseSpinWheelMeta(empty); !errors.Is(err, engagement.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without segments, got %v", err)
	}
}

func TestMilestoneDaysSorted(t *testing.T) {
	meta := &engagement.DailyLoginMeta{
		MilestoneBonuses: map[string]int64{"30": 300, "7": 50, "bad": 10, "100": 1000},
	}

	days := meta.MilestoneDays()
	want := []int{7, 30, 100}
	if len(days) != len(want) {
		t.Fatalf("expected %v, got %v", want, days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, days)
		}
	}
}
