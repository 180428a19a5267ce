package rewards

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coinloop/rewards-api/internal/domain/engagement"
	"github.com/coinloop/rewards-api/internal/domain/events"
	"github.com/coinloop/rewards-api/internal/domain/ledger"
	"github.com/coinloop/rewards-api/internal/domain/quota"
	"github.com/coinloop/rewards-api/internal/domain/streak"
)

// sharePlatforms accepted by ShareSocial.
var sharePlatforms = map[string]bool{
	"instagram": true,
	"tiktok":    true,
	"facebook":  true,
	"x":         true,
	"whatsapp":  true,
}

// Publisher pushes a wallet event out to connected clients. Nil-safe from
// the service's point of view: events are best effort.
type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

// Service glues the earning pipeline together: quota check, config and
// campaign resolution, then the ledger append. Every coin movement in the
// system that isn't the sweeper goes through one of its methods.
type Service struct {
	ledger     *ledger.Service
	quota      *quota.Service
	streaks    *streak.Service
	engagement *engagement.Service
	publisher  Publisher

	intn func(n int) int
	now  func() time.Time
}

func NewService(l *ledger.Service, q *quota.Service, st *streak.Service, eng *engagement.Service, pub Publisher) *Service {
	return &Service{
		ledger:     l,
		quota:      q,
		streaks:    st,
		engagement: eng,
		publisher:  pub,
		intn:       rand.Intn,
		now:        time.Now,
	}
}

// retryDelay before the single append retry on a transient storage error.
const retryDelay = 100 * time.Millisecond

// append writes the ledger entry, retrying once on transient failures.
// Domain errors pass through untouched; anything still failing after the
// retry surfaces as ledger.ErrUnavailable so handlers answer 503 instead
// of a misleading 500.
func (s *Service) append(ctx context.Context, in ledger.AppendInput) (*ledger.Entry, error) {
	entry, err := s.ledger.Append(ctx, in)
	if err == nil || isDomainError(err) {
		return entry, err
	}

	log.Warn().Err(err).
		Str("user_id", in.UserID.String()).
		Str("source", string(in.Source)).
		Msg("ledger append failed, retrying once")

	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	entry, err = s.ledger.Append(ctx, in)
	if err == nil || isDomainError(err) {
		return entry, err
	}
	return nil, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
}

func isDomainError(err error) bool {
	return errors.Is(err, ledger.ErrInsufficientBalance) ||
		errors.Is(err, ledger.ErrReferenceConflict) ||
		errors.Is(err, ledger.ErrInvalidAmount) ||
		errors.Is(err, ledger.ErrInvalidKind)
}

func (s *Service) publish(ctx context.Context, entry *ledger.Entry, eventType events.EventType, data interface{}) {
	if s.publisher == nil || entry == nil {
		return
	}
	s.publisher.Publish(ctx, events.Event{
		Type:    eventType,
		UserID:  entry.UserID,
		Amount:  entry.Amount,
		Balance: entry.BalanceAfter,
		Source:  string(entry.Source),
		Data:    data,
	})
}

// AwardOrderCashback credits a percentage of a completed order's total,
// keyed by order ID so a replayed completion webhook is a no-op. The order
// streak advances alongside the credit.
func (s *Service) AwardOrderCashback(ctx context.Context, userID uuid.UUID, orderID string, orderTotal int64) (*Award, error) {
	if orderID == "" || orderTotal <= 0 {
		return nil, ErrInvalidOrder
	}

	cfg, err := s.engagement.Lookup(ctx, engagement.ActionOrder)
	if err != nil {
		return nil, err
	}
	meta, err := engagement.ParseOrderMeta(cfg)
	if err != nil {
		return nil, err
	}

	base := orderTotal * meta.CashbackPercent / 100
	if base <= 0 {
		return nil, ErrNothingToAward
	}

	reward, err := s.engagement.EffectiveReward(ctx, engagement.ActionOrder, base, s.now())
	if err != nil {
		return nil, err
	}

	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      userID,
		Kind:        ledger.KindEarned,
		Amount:      reward.Amount,
		Source:      ledger.SourceOrder,
		Description: "Order cashback",
		Metadata: map[string]interface{}{
			"order_id":    orderID,
			"order_total": orderTotal,
		},
		ReferenceID: orderID,
		ExpiresAt:   reward.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.streaks.RecordActivity(ctx, userID, streak.TypeOrder, nil); err != nil {
		// The credit is already committed; a streak hiccup must not undo it.
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to advance order streak")
	}

	s.publish(ctx, entry, events.EventCoinsEarned, nil)
	return &Award{Entry: entry, Coins: entry.Amount, Balance: entry.BalanceAfter, Multiplier: reward.Multiplier}, nil
}

// QualifyReferral credits the referrer once the referred user completes
// their qualifying action. Keyed by the referred user's ID: one referral,
// one payout, however many times the qualification event fires.
func (s *Service) QualifyReferral(ctx context.Context, referrerID, referredID uuid.UUID) (*Award, error) {
	reward, err := s.engagement.EffectiveReward(ctx, engagement.ActionReferral, 0, s.now())
	if err != nil {
		return nil, err
	}

	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      referrerID,
		Kind:        ledger.KindEarned,
		Amount:      reward.Amount,
		Source:      ledger.SourceReferral,
		Description: "Referral bonus",
		Metadata:    map[string]interface{}{"referred_user_id": referredID},
		ReferenceID: referredID.String(),
		ExpiresAt:   reward.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entry, events.EventCoinsEarned, nil)
	return &Award{Entry: entry, Coins: entry.Amount, Balance: entry.BalanceAfter, Multiplier: reward.Multiplier}, nil
}

// UnlockAchievement credits a one-time achievement reward. coins overrides
// the configured amount when the achievement carries its own value.
func (s *Service) UnlockAchievement(ctx context.Context, userID uuid.UUID, achievementID string, coins int64) (*Award, error) {
	if achievementID == "" {
		return nil, ErrInvalidOrder
	}

	reward, err := s.engagement.EffectiveReward(ctx, engagement.ActionAchievement, coins, s.now())
	if err != nil {
		return nil, err
	}
	if reward.Amount <= 0 {
		// Neither the achievement nor the action config carries a value.
		return nil, ErrNothingToAward
	}

	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      userID,
		Kind:        ledger.KindEarned,
		Amount:      reward.Amount,
		Source:      ledger.SourceAchievement,
		Description: "Achievement unlocked",
		Metadata:    map[string]interface{}{"achievement_id": achievementID},
		ReferenceID: achievementID,
		ExpiresAt:   reward.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entry, events.EventCoinsEarned, nil)
	return &Award{Entry: entry, Coins: entry.Amount, Balance: entry.BalanceAfter, Multiplier: reward.Multiplier}, nil
}

// Spin consumes one spin from today's quota and lands the wheel on a
// weighted segment. A zero-coin segment still burns the spin; that is the
// house edge, and it is configured, not hard-coded.
func (s *Service) Spin(ctx context.Context, userID uuid.UUID) (*SpinResult, error) {
	cfg, err := s.engagement.Lookup(ctx, engagement.ActionSpinWheel)
	if err != nil {
		return nil, err
	}
	meta, err := engagement.ParseSpinWheelMeta(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.DailyLimit <= 0 {
		// A zero limit is how operators switch spins off without disabling
		// the wheel config outright.
		return nil, engagement.ErrActionDisabled
	}

	counter, err := s.quota.TryConsume(ctx, userID, engagement.ActionSpinWheel, cfg.DailyLimit)
	if err != nil {
		return nil, err
	}
	spinsLeft := counter.Quota - counter.Used

	segment := s.pickSegment(meta.Segments)
	result := &SpinResult{
		Segment:   fmt.Sprintf("%d", segment.Coins),
		Coins:     0,
		SpinsLeft: spinsLeft,
	}

	if segment.Coins <= 0 {
		balance, err := s.ledger.GetBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		result.Balance = balance
		return result, nil
	}

	reward, err := s.engagement.EffectiveReward(ctx, engagement.ActionSpinWheel, segment.Coins, s.now())
	if err != nil {
		s.quota.Release(ctx, userID, engagement.ActionSpinWheel)
		return nil, err
	}

	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      userID,
		Kind:        ledger.KindEarned,
		Amount:      reward.Amount,
		Source:      ledger.SourceSpinWheel,
		Description: "Spin wheel prize",
		Metadata:    map[string]interface{}{"segment_coins": segment.Coins},
		ExpiresAt:   reward.ExpiresAt,
	})
	if err != nil {
		// The prize was never credited, so the spin goes back. Without this
		// a retry after a storage outage would be answered with a spent
		// quota instead of the replayed entry.
		s.quota.Release(ctx, userID, engagement.ActionSpinWheel)
		return nil, err
	}

	result.Coins = entry.Amount
	result.Balance = entry.BalanceAfter
	result.Entry = entry
	result.Multiplier = reward.Multiplier
	s.publish(ctx, entry, events.EventCoinsEarned, map[string]interface{}{"segment_coins": segment.Coins})
	return result, nil
}

func (s *Service) pickSegment(segments []engagement.WheelSegment) engagement.WheelSegment {
	total := 0
	for _, seg := range segments {
		if seg.Weight > 0 {
			total += seg.Weight
		}
	}
	if total == 0 {
		return engagement.WheelSegment{}
	}

	// Top-level rand.Intn is safe for concurrent spins; a per-service
	// rand.Rand is not.
	n := s.intn(total)
	for _, seg := range segments {
		if seg.Weight <= 0 {
			continue
		}
		if n < seg.Weight {
			return seg
		}
		n -= seg.Weight
	}
	return segments[len(segments)-1]
}

// CheckIn handles the daily login: one credit per UTC day, streak advance,
// and automatic payout for any milestone the streak just crossed. The quota
// row is what makes the second check-in of the day fail, so the streak math
// never sees a same-day duplicate in practice.
func (s *Service) CheckIn(ctx context.Context, userID uuid.UUID) (*CheckInResult, error) {
	cfg, err := s.engagement.Lookup(ctx, engagement.ActionDailyLogin)
	if err != nil {
		return nil, err
	}
	limit := cfg.DailyLimit
	if limit <= 0 {
		limit = 1
	}

	if _, err := s.quota.TryConsume(ctx, userID, engagement.ActionDailyLogin, limit); err != nil {
		return nil, err
	}

	meta, err := engagement.ParseDailyLoginMeta(cfg)
	if err != nil {
		s.quota.Release(ctx, userID, engagement.ActionDailyLogin)
		return nil, err
	}

	state, err := s.streaks.RecordActivity(ctx, userID, streak.TypeLogin, meta.MilestoneDays())
	if err != nil {
		s.quota.Release(ctx, userID, engagement.ActionDailyLogin)
		return nil, err
	}

	reward, err := s.engagement.EffectiveReward(ctx, engagement.ActionDailyLogin, 0, s.now())
	if err != nil {
		s.quota.Release(ctx, userID, engagement.ActionDailyLogin)
		return nil, err
	}

	day := quota.DayOf(s.now()).Format("2006-01-02")
	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      userID,
		Kind:        ledger.KindEarned,
		Amount:      reward.Amount,
		Source:      ledger.SourceDailyLogin,
		Description: "Daily check-in",
		Metadata:    map[string]interface{}{"streak": state.CurrentStreak},
		ReferenceID: day,
		ExpiresAt:   reward.ExpiresAt,
	})
	if err != nil {
		// No credit landed, so the day's slot goes back; the retry will
		// consume it again and the date reference replays any entry that
		// did make it in.
		s.quota.Release(ctx, userID, engagement.ActionDailyLogin)
		return nil, err
	}

	result := &CheckInResult{
		Coins:         entry.Amount,
		Balance:       entry.BalanceAfter,
		CurrentStreak: state.CurrentStreak,
		LongestStreak: state.LongestStreak,
		Entry:         entry,
	}

	for _, milestoneDay := range state.CrossedMilestones {
		awarded, err := s.payMilestone(ctx, userID, streak.TypeLogin, milestoneDay, meta)
		if err != nil {
			// The claim endpoint remains as the recovery path.
			log.Error().Err(err).
				Str("user_id", userID.String()).
				Int("milestone_day", milestoneDay).
				Msg("failed to pay milestone bonus during check-in")
			continue
		}
		if awarded != nil {
			result.Milestones = append(result.Milestones, *awarded)
			result.Balance += awarded.Bonus
		}
	}

	s.publish(ctx, entry, events.EventCoinsEarned, map[string]interface{}{"streak": state.CurrentStreak})
	return result, nil
}

// ClaimMilestone pays a streak milestone bonus on demand. Safe to call
// twice: the ledger reference is the gate, with the claim row recording
// that the milestone was reached.
func (s *Service) ClaimMilestone(ctx context.Context, userID uuid.UUID, t streak.Type, day int) (*Award, error) {
	cfg, err := s.engagement.Lookup(ctx, engagement.ActionDailyLogin)
	if err != nil {
		return nil, err
	}
	meta, err := engagement.ParseDailyLoginMeta(cfg)
	if err != nil {
		return nil, err
	}
	bonus := meta.MilestoneBonuses[strconv.Itoa(day)]
	if bonus <= 0 {
		return nil, streak.ErrNotReached
	}

	if err := s.streaks.ClaimMilestone(ctx, userID, t, day); err != nil {
		// A claim row without its ledger entry means an earlier payout
		// died between the two writes. The milestone reference makes the
		// append below an idempotent replay, so falling through either
		// returns the original entry or finally pays the bonus.
		if !errors.Is(err, streak.ErrAlreadyClaimed) {
			return nil, err
		}
	}

	awarded, err := s.payMilestoneEntry(ctx, userID, t, day, bonus)
	if err != nil {
		return nil, err
	}
	return &Award{Entry: awarded, Coins: awarded.Amount, Balance: awarded.BalanceAfter}, nil
}

func (s *Service) payMilestone(ctx context.Context, userID uuid.UUID, t streak.Type, day int, meta *engagement.DailyLoginMeta) (*MilestoneAward, error) {
	bonus := meta.MilestoneBonuses[strconv.Itoa(day)]
	if bonus <= 0 {
		return nil, nil
	}
	if err := s.streaks.ClaimMilestone(ctx, userID, t, day); err != nil {
		if errors.Is(err, streak.ErrAlreadyClaimed) {
			return nil, nil
		}
		return nil, err
	}
	if _, err := s.payMilestoneEntry(ctx, userID, t, day, bonus); err != nil {
		return nil, err
	}
	return &MilestoneAward{Day: day, Bonus: bonus}, nil
}

func (s *Service) payMilestoneEntry(ctx context.Context, userID uuid.UUID, t streak.Type, day int, bonus int64) (*ledger.Entry, error) {
	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      userID,
		Kind:        ledger.KindBonus,
		Amount:      bonus,
		Source:      ledger.SourceDailyLogin,
		Description: fmt.Sprintf("%d-day streak bonus", day),
		Metadata:    map[string]interface{}{"streak_type": t, "milestone_day": day},
		ReferenceID: fmt.Sprintf("milestone:%s:%d", t, day),
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, entry, events.EventStreakMilestone, map[string]interface{}{"milestone_day": day})
	return entry, nil
}

// ShareSocial credits a social share, up to the configured daily count.
func (s *Service) ShareSocial(ctx context.Context, userID uuid.UUID, platform string) (*Award, error) {
	if !sharePlatforms[platform] {
		return nil, ErrInvalidPlatform
	}

	cfg, err := s.engagement.Lookup(ctx, engagement.ActionSocialShare)
	if err != nil {
		return nil, err
	}
	if cfg.DailyLimit <= 0 {
		return nil, engagement.ErrActionDisabled
	}

	if _, err := s.quota.TryConsume(ctx, userID, engagement.ActionSocialShare, cfg.DailyLimit); err != nil {
		return nil, err
	}

	reward, err := s.engagement.EffectiveReward(ctx, engagement.ActionSocialShare, 0, s.now())
	if err != nil {
		s.quota.Release(ctx, userID, engagement.ActionSocialShare)
		return nil, err
	}

	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      userID,
		Kind:        ledger.KindEarned,
		Amount:      reward.Amount,
		Source:      ledger.SourceSocialShare,
		Description: "Social share",
		Metadata:    map[string]interface{}{"platform": platform},
		ExpiresAt:   reward.ExpiresAt,
	})
	if err != nil {
		s.quota.Release(ctx, userID, engagement.ActionSocialShare)
		return nil, err
	}

	s.publish(ctx, entry, events.EventCoinsEarned, map[string]interface{}{"platform": platform})
	return &Award{Entry: entry, Coins: entry.Amount, Balance: entry.BalanceAfter, Multiplier: reward.Multiplier}, nil
}

// Redeem spends coins against an order at checkout. Keyed by order ID:
// a duplicate submit returns the original debit instead of double-charging.
func (s *Service) Redeem(ctx context.Context, userID uuid.UUID, amount int64, orderID string) (*RedeemResult, error) {
	if orderID == "" {
		return nil, ErrInvalidOrder
	}

	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      userID,
		Kind:        ledger.KindSpent,
		Amount:      amount,
		Source:      ledger.SourceRedemption,
		Description: "Redeemed at checkout",
		Metadata:    map[string]interface{}{"order_id": orderID},
		ReferenceID: orderID,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entry, events.EventCoinsSpent, map[string]interface{}{"order_id": orderID})
	return &RedeemResult{Entry: entry, Balance: entry.BalanceAfter}, nil
}

// Refund returns previously redeemed coins after an order cancellation.
// Refunded coins come back without an expiry of their own.
func (s *Service) Refund(ctx context.Context, userID uuid.UUID, amount int64, orderID string) (*Award, error) {
	if orderID == "" {
		return nil, ErrInvalidOrder
	}

	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      userID,
		Kind:        ledger.KindRefunded,
		Amount:      amount,
		Source:      ledger.SourceRedemption,
		Description: "Redemption refunded",
		Metadata:    map[string]interface{}{"order_id": orderID},
		ReferenceID: "refund:" + orderID,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entry, events.EventCoinsRefunded, map[string]interface{}{"order_id": orderID})
	return &Award{Entry: entry, Coins: entry.Amount, Balance: entry.BalanceAfter}, nil
}

// RecordStreakActivity advances a non-login streak (order, review) without
// touching the ledger. Used by internal services reporting user activity.
func (s *Service) RecordStreakActivity(ctx context.Context, userID uuid.UUID, t streak.Type) (*streak.State, error) {
	return s.streaks.RecordActivity(ctx, userID, t, nil)
}

// Grant is the operator escape hatch: support compensation, promotions,
// goodwill. Always audited through the reason in the entry description.
func (s *Service) Grant(ctx context.Context, adminID uuid.UUID, in GrantInput) (*Award, error) {
	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      in.UserID,
		Kind:        ledger.KindBonus,
		Amount:      in.Amount,
		Source:      ledger.SourceAdmin,
		Description: in.Reason,
		Metadata:    map[string]interface{}{"granted_by": adminID},
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entry, events.EventCoinsEarned, map[string]interface{}{"reason": in.Reason})
	return &Award{Entry: entry, Coins: entry.Amount, Balance: entry.BalanceAfter}, nil
}

// Revoke debits coins from a user, e.g. after a fraudulent earn. Fails with
// ErrInsufficientBalance rather than driving the balance negative.
func (s *Service) Revoke(ctx context.Context, adminID uuid.UUID, in GrantInput) (*Award, error) {
	entry, err := s.append(ctx, ledger.AppendInput{
		UserID:      in.UserID,
		Kind:        ledger.KindSpent,
		Amount:      in.Amount,
		Source:      ledger.SourceAdmin,
		Description: in.Reason,
		Metadata:    map[string]interface{}{"revoked_by": adminID},
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, entry, events.EventCoinsSpent, map[string]interface{}{"reason": in.Reason})
	return &Award{Entry: entry, Coins: entry.Amount, Balance: entry.BalanceAfter}, nil
}

// Quotas reports today's remaining attempts for each rate-limited action.
func (s *Service) Quotas(ctx context.Context, userID uuid.UUID) ([]QuotaStatus, error) {
	configs, err := s.engagement.ListConfigs(ctx)
	if err != nil {
		return nil, err
	}

	resetAt := quota.ResetAtFor(s.now())
	statuses := make([]QuotaStatus, 0, len(configs))
	for _, cfg := range configs {
		if cfg.DailyLimit <= 0 || !cfg.Enabled {
			continue
		}
		remaining, err := s.quota.Remaining(ctx, userID, cfg.Action, cfg.DailyLimit)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, QuotaStatus{
			Action:    cfg.Action,
			Remaining: remaining,
			ResetAt:   resetAt,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Action < statuses[j].Action })
	return statuses, nil
}
