package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type store interface {
	Append(ctx context.Context, entry Entry) (Ledger, error)
	Ledger(ctx context.Context, userID string) (Ledger, error)
	Monthly(ctx context.Context, userID string) ([]MonthlyUsage, error)
}

// Service records metered analysis calls and reports per-user stats.
type Service struct {
	store store
	now   func() time.Time
	newID func() string
}

// NewService constructs a Service with in-memory store.
func NewService() *Service {
	return NewPostgresService(newMemoryStore())
}

// NewPostgresService constructs a Service backed by the given store.
func NewPostgresService(s store) *Service {
	return &Service{store: s, now: time.Now, newID: uuid.NewString}
}

// Record appends one entry and bumps the owner's running totals.
func (s *Service) Record(ctx context.Context, entry Entry) (Ledger, error) {
	if strings.TrimSpace(entry.UserID) == "" {
		return Ledger{}, fmt.Errorf("%w: missing user", ErrInvalidEntry)
	}
	if entry.InputTokens < 0 || entry.OutputTokens < 0 || entry.Cost < 0 {
		return Ledger{}, fmt.Errorf("%w: negative usage", ErrInvalidEntry)
	}
	if entry.TotalTokens < entry.InputTokens+entry.OutputTokens {
		entry.TotalTokens = entry.InputTokens + entry.OutputTokens
	}
	if entry.ID == "" {
		entry.ID = s.newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	return s.store.Append(ctx, entry)
}

// Stats returns totals and a month-by-month breakdown, newest month first.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	ledger, err := s.store.Ledger(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	monthly, err := s.store.Monthly(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	if monthly == nil {
		monthly = []MonthlyUsage{}
	}
	ledger.UserID = userID
	return Stats{Ledger: ledger, Monthly: monthly}, nil
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
