package engagement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Store is the config lookup surface the rewards adapters depend on.
// Production wires the Redis-cached decorator around the Postgres repository.
type Store interface {
	GetConfig(ctx context.Context, action string) (*ActionConfig, error)
	ActiveCampaign(ctx context.Context, action string, now time.Time) (*Campaign, error)
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetConfig(ctx context.Context, action string) (*ActionConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var cfg ActionConfig
	err := r.db.GetContext(ctx, &cfg, `
		SELECT action, daily_limit, coin_amount, expiry_days, enabled, metadata, updated_at
		FROM action_configs
		WHERE action = $1
	`, action)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownAction
	}
	if err != nil {
		return nil, fmt.Errorf("get action config: %w", err)
	}
	return &cfg, nil
}

func (r *Repository) ListConfigs(ctx context.Context) ([]ActionConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	configs := make([]ActionConfig, 0)
	err := r.db.SelectContext(ctx, &configs, `
		SELECT action, daily_limit, coin_amount, expiry_days, enabled, metadata, updated_at
		FROM action_configs
		ORDER BY action
	`)
	if err != nil {
		return nil, fmt.Errorf("list action configs: %w", err)
	}
	return configs, nil
}

func (r *Repository) UpsertConfig(ctx context.Context, cfg *ActionConfig) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	metadata := cfg.Metadata
	if metadata == nil {
		metadata = []byte(`{}`)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO action_configs (action, daily_limit, coin_amount, expiry_days, enabled, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (action) DO UPDATE
		SET daily_limit = EXCLUDED.daily_limit,
		    coin_amount = EXCLUDED.coin_amount,
		    expiry_days = EXCLUDED.expiry_days,
		    enabled = EXCLUDED.enabled,
		    metadata = EXCLUDED.metadata,
		    updated_at = now()
	`, cfg.Action, cfg.DailyLimit, cfg.CoinAmount, cfg.ExpiryDays, cfg.Enabled, []byte(metadata))
	if err != nil {
		return fmt.Errorf("upsert action config: %w", err)
	}
	return nil
}

// ActiveCampaign returns the live campaign with the highest multiplier for an
// action, or nil when none is running.
func (r *Repository) ActiveCampaign(ctx context.Context, action string, now time.Time) (*Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Campaign
	err := r.db.GetContext(ctx, &c, `
		SELECT id, action, multiplier, starts_at, ends_at, created_at
		FROM campaigns
		WHERE action = $1 AND starts_at <= $2 AND ends_at > $2
		ORDER BY multiplier DESC
		LIMIT 1
	`, action, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active campaign: %w", err)
	}
	return &c, nil
}

func (r *Repository) CreateCampaign(ctx context.Context, c *Campaign) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO campaigns (action, multiplier, starts_at, ends_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, c.Action, c.Multiplier, c.StartsAt, c.EndsAt).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}
