package statement

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coinloop/rewards-api/internal/domain/ledger"
	"github.com/coinloop/rewards-api/internal/pkg/storage"
)

var (
	ErrInvalidMonth = errors.New("month must be YYYY-MM and not in the future")
	ErrNoStorage    = errors.New("object storage is not configured")
)

// Statement points at a generated monthly CSV export.
type Statement struct {
	Month       string    `json:"month"`
	URL         string    `json:"url"`
	Entries     int       `json:"entries"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Service renders a user's monthly ledger activity as CSV and uploads it to
// object storage. Past months are immutable, so an existing object is
// served as-is; the current month is re-rendered on every request.
type Service struct {
	repo    *ledger.Repository
	storage *storage.ObjectStorage
	now     func() time.Time
}

func NewService(repo *ledger.Repository, store *storage.ObjectStorage) *Service {
	return &Service{repo: repo, storage: store, now: time.Now}
}

func NewServiceWithClock(repo *ledger.Repository, store *storage.ObjectStorage, now func() time.Time) *Service {
	return &Service{repo: repo, storage: store, now: now}
}

// Export generates (or reuses) the statement for the given YYYY-MM month.
func (s *Service) Export(ctx context.Context, userID uuid.UUID, month string) (*Statement, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}

	from, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, ErrInvalidMonth
	}
	now := s.now().UTC()
	if from.After(now) {
		return nil, ErrInvalidMonth
	}
	to := from.AddDate(0, 1, 0)

	key := fmt.Sprintf("statements/%s/%s.csv", userID, month)
	closedMonth := !to.After(now)
	if closedMonth {
		exists, err := s.storage.Exists(ctx, key)
		if err == nil && exists {
			return &Statement{Month: month, URL: s.storage.URL(key), GeneratedAt: now}, nil
		}
	}

	entries, err := s.repo.ListEntriesForPeriod(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	body, err := render(entries)
	if err != nil {
		return nil, err
	}

	if err := s.storage.Put(ctx, key, bytes.NewReader(body), "text/csv"); err != nil {
		return nil, fmt.Errorf("failed to upload statement: %w", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("month", month).
		Int("entries", len(entries)).
		Msg("statement exported")

	return &Statement{
		Month:       month,
		URL:         s.storage.URL(key),
		Entries:     len(entries),
		GeneratedAt: now,
	}, nil
}

func render(entries []ledger.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"date", "kind", "source", "amount", "balance_after", "description", "reference_id"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		ref := ""
		if e.ReferenceID != nil {
			ref = *e.ReferenceID
		}
		record := []string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Kind),
			string(e.Source),
			strconv.FormatInt(e.SignedAmount(), 10),
			strconv.FormatInt(e.BalanceAfter, 10),
			e.Description,
			ref,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
