package engagement

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Action names. They double as quota keys and ledger sources.
const (
	ActionOrder       = "order"
	ActionReferral    = "referral"
	ActionAchievement = "achievement"
	ActionSpinWheel   = "spin_wheel"
	ActionDailyLogin  = "daily_login"
	ActionSocialShare = "social_share"
)

// ActionConfig is the operator-tunable knob set for one earning action.
// Stored as an independently updatable row so limits and amounts can change
// without a redeploy.
type ActionConfig struct {
	Action     string          `db:"action" json:"action"`
	DailyLimit int             `db:"daily_limit" json:"daily_limit"`
	CoinAmount int64           `db:"coin_amount" json:"coin_amount"`
	ExpiryDays int             `db:"expiry_days" json:"expiry_days"`
	Enabled    bool            `db:"enabled" json:"enabled"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Campaign temporarily scales the reward amount for an action between two
// timestamps. It never changes the quota.
type Campaign struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Action     string    `db:"action" json:"action"`
	Multiplier float64   `db:"multiplier" json:"multiplier"`
	StartsAt   time.Time `db:"starts_at" json:"starts_at"`
	EndsAt     time.Time `db:"ends_at" json:"ends_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Active reports whether the campaign covers the given instant.
func (c *Campaign) Active(now time.Time) bool {
	return !now.Before(c.StartsAt) && now.Before(c.EndsAt)
}

// WheelSegment is one slice of the spin wheel, configured through the
// spin_wheel action metadata.
type WheelSegment struct {
	Coins  int64 `json:"coins"`
	Weight int   `json:"weight"`
}

// SpinWheelMeta is the metadata payload of the spin_wheel action config.
type SpinWheelMeta struct {
	Segments []WheelSegment `json:"segments"`
}

// OrderMeta is the metadata payload of the order action config.
type OrderMeta struct {
	CashbackPercent int64 `json:"cashback_percent"`
}

// DailyLoginMeta is the metadata payload of the daily_login action config.
// Milestone bonuses are keyed by streak day.
type DailyLoginMeta struct {
	MilestoneBonuses map[string]int64 `json:"milestone_bonuses"`
}

// MilestoneDays returns the configured milestone days in ascending order.
func (m *DailyLoginMeta) MilestoneDays() []int {
	days := make([]int, 0, len(m.MilestoneBonuses))
	for key := range m.MilestoneBonuses {
		day, err := strconv.Atoi(key)
		if err != nil || day <= 0 {
			continue
		}
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}

// ParseOrderMeta decodes the order action metadata.
func ParseOrderMeta(cfg *ActionConfig) (*OrderMeta, error) {
	var meta OrderMeta
	if err := parseMeta(cfg, &meta); err != nil {
		return nil, err
	}
	if meta.CashbackPercent < 0 || meta.CashbackPercent > 100 {
		return nil, ErrInvalidConfig
	}
	return &meta, nil
}

// ParseSpinWheelMeta decodes the spin_wheel action metadata.
func ParseSpinWheelMeta(cfg *ActionConfig) (*SpinWheelMeta, error) {
	var meta SpinWheelMeta
	if err := parseMeta(cfg, &meta); err != nil {
		return nil, err
	}
	if len(meta.Segments) == 0 {
		return nil, ErrInvalidConfig
	}
	return &meta, nil
}

// ParseDailyLoginMeta decodes the daily_login action metadata. A config
// without milestone bonuses is valid; check-ins then pay the base amount only.
func ParseDailyLoginMeta(cfg *ActionConfig) (*DailyLoginMeta, error) {
	var meta DailyLoginMeta
	if err := parseMeta(cfg, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func parseMeta(cfg *ActionConfig, dst interface{}) error {
	if len(cfg.Metadata) == 0 {
		return nil
	}
	if err := json.Unmarshal(cfg.Metadata, dst); err != nil {
		return ErrInvalidConfig
	}
	return nil
}
