package engagement

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Reward is the resolved outcome of a config lookup for one earning attempt.
type Reward struct {
	Config     *ActionConfig
	Amount     int64
	Multiplier float64
	ExpiresAt  *time.Time
}

// Service resolves the effective reward for an action: base coin amount
// scaled by any live campaign multiplier, plus the expiry horizon. The quota
// is deliberately never scaled.
type Service struct {
	store Store
	repo  *Repository
	cache *CachedStore
}

func NewService(store Store, repo *Repository) *Service {
	svc := &Service{store: store, repo: repo}
	if cached, ok := store.(*CachedStore); ok {
		svc.cache = cached
	}
	return svc
}

// Lookup returns the enabled config for an action.
func (s *Service) Lookup(ctx context.Context, action string) (*ActionConfig, error) {
	cfg, err := s.store.GetConfig(ctx, action)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, ErrActionDisabled
	}
	return cfg, nil
}

// EffectiveReward resolves the coins to award for one attempt at an action.
// baseOverride replaces the configured coin amount when the adapter computes
// its own base (order cashback, spin segment); pass 0 to use the config.
func (s *Service) EffectiveReward(ctx context.Context, action string, baseOverride int64, now time.Time) (*Reward, error) {
	cfg, err := s.Lookup(ctx, action)
	if err != nil {
		return nil, err
	}

	base := cfg.CoinAmount
	if baseOverride > 0 {
		base = baseOverride
	}

	reward := &Reward{Config: cfg, Amount: base, Multiplier: 1.0}

	campaign, err := s.store.ActiveCampaign(ctx, action, now)
	if err != nil {
		return nil, err
	}
	if campaign != nil && campaign.Multiplier > 0 {
		reward.Multiplier = campaign.Multiplier
		reward.Amount = int64(math.Round(float64(base) * campaign.Multiplier))
		log.Debug().
			Str("action", action).
			Float64("multiplier", campaign.Multiplier).
			Int64("base", base).
			Int64("amount", reward.Amount).
			Msg("campaign multiplier applied")
	}

	if cfg.ExpiryDays > 0 {
		expires := now.UTC().AddDate(0, 0, cfg.ExpiryDays)
		reward.ExpiresAt = &expires
	}

	return reward, nil
}

func (s *Service) ListConfigs(ctx context.Context) ([]ActionConfig, error) {
	return s.repo.ListConfigs(ctx)
}

func (s *Service) UpsertConfig(ctx context.Context, cfg *ActionConfig) error {
	if cfg.Action == "" || cfg.DailyLimit < 0 || cfg.CoinAmount < 0 || cfg.ExpiryDays < 0 {
		return ErrInvalidConfig
	}
	if err := s.repo.UpsertConfig(ctx, cfg); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, cfg.Action)
	}
	log.Info().Str("action", cfg.Action).Int("daily_limit", cfg.DailyLimit).Int64("coin_amount", cfg.CoinAmount).Msg("engagement config updated")
	return nil
}

func (s *Service) CreateCampaign(ctx context.Context, c *Campaign) error {
	if c.Action == "" || c.Multiplier <= 0 || !c.EndsAt.After(c.StartsAt) {
		return ErrInvalidCampaign
	}
	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, c.Action)
	}
	log.Info().Str("action", c.Action).Float64("multiplier", c.Multiplier).Time("starts_at", c.StartsAt).Time("ends_at", c.EndsAt).Msg("campaign created")
	return nil
}
