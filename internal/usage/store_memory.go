package usage

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu      sync.RWMutex
	ledgers map[string]Ledger
	entries map[string][]Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		ledgers: make(map[string]Ledger),
		entries: make(map[string][]Entry),
	}
}

func (s *memoryStore) Append(ctx context.Context, entry Entry) (Ledger, error) {
	if err := ctx.Err(); err != nil {
		return Ledger{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.ledgers[entry.UserID]
	l.UserID = entry.UserID
	l.TotalTokens += int64(entry.TotalTokens)
	l.TotalCost += entry.Cost
	l.AnalysisCount++
	s.ledgers[entry.UserID] = l
	s.entries[entry.UserID] = append(s.entries[entry.UserID], entry)
	return l, nil
}

func (s *memoryStore) Ledger(ctx context.Context, userID string) (Ledger, error) {
	if err := ctx.Err(); err != nil {
		return Ledger{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l := s.ledgers[userID]
	l.UserID = userID
	return l, nil
}

func (s *memoryStore) Monthly(ctx context.Context, userID string) ([]MonthlyUsage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	byMonth := map[string]*MonthlyUsage{}
	for _, e := range s.entries[userID] {
		key := monthKey(e.CreatedAt)
		m, ok := byMonth[key]
		if !ok {
			m = &MonthlyUsage{Month: key}
			byMonth[key] = m
		}
		m.Analyses++
		m.InputTokens += int64(e.InputTokens)
		m.OutputTokens += int64(e.OutputTokens)
		m.TotalTokens += int64(e.TotalTokens)
		m.Cost += e.Cost
	}
	out := make([]MonthlyUsage, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out, nil
}
