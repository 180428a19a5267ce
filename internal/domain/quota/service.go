package quota

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service gates rate-limited earning actions. A denied attempt never reaches
// the transaction log.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// TryConsume takes one slot from today's quota or returns ErrQuotaExceeded.
func (s *Service) TryConsume(ctx context.Context, userID uuid.UUID, action string, limit int) (*Counter, error) {
	c, err := s.repo.TryConsume(ctx, userID, action, limit)
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			log.Debug().Str("user_id", userID.String()).Str("action", action).Int("limit", limit).Msg("quota denied")
		}
		return nil, err
	}

	log.Debug().Str("user_id", userID.String()).Str("action", action).Int("used", c.Used).Int("limit", limit).Msg("quota consumed")
	return c, nil
}

// Release returns a consumed slot, best effort. A failed release only costs
// the user one attempt until midnight, so the error is logged, not returned.
func (s *Service) Release(ctx context.Context, userID uuid.UUID, action string) {
	if err := s.repo.Release(ctx, userID, action); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Str("action", action).Msg("failed to release quota slot")
	}
}

func (s *Service) Remaining(ctx context.Context, userID uuid.UUID, action string, limit int) (int, error) {
	return s.repo.Remaining(ctx, userID, action, limit)
}
