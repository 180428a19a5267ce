package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Service is the single write path into the transaction log. Every earning
// and spending adapter funnels through Append.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Append(ctx context.Context, in AppendInput) (*Entry, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !in.Kind.Valid() {
		return nil, ErrInvalidKind
	}

	entry, err := s.repo.Append(ctx, in)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", in.UserID.String()).
		Str("kind", string(in.Kind)).
		Str("source", string(in.Source)).
		Int64("amount", in.Amount).
		Int64("balance_after", entry.BalanceAfter).
		Msg("ledger entry appended")
	return entry, nil
}

// AppendTx appends inside an external transaction; the caller holds the
// balance row lock and owns commit/rollback.
func (s *Service) AppendTx(ctx context.Context, tx *sqlx.Tx, in AppendInput) (*Entry, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !in.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	return s.repo.AppendTx(ctx, tx, in)
}

func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

func (s *Service) ListEntries(ctx context.Context, userID uuid.UUID, f Filters) ([]Entry, int, error) {
	return s.repo.ListEntries(ctx, userID, f)
}
