package tempresumes

import (
	"context"
	"sort"
	"sync"
	"time"

	"jobboard-backend/internal/analysis"
)

type MemoryStore struct {
	mu      sync.Mutex
	lease   time.Duration
	records map[string]Record
}

func NewMemoryStore(lease time.Duration) *MemoryStore {
	return &MemoryStore{lease: leaseOrDefault(lease), records: make(map[string]Record)}
}

func (s *MemoryStore) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Analysis = cloneResult(rec.Analysis)
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) GetOwned(ctx context.Context, ownerID, id string, now time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || !rec.live(ownerID, now, s.lease) {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) SetAnalysis(ctx context.Context, ownerID, id string, result analysis.Result, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || !rec.live(ownerID, now, s.lease) {
		return ErrNotFound
	}
	rec.Analysis = cloneResult(&result)
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) Claim(ctx context.Context, ownerID, id string, now time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || !rec.live(ownerID, now, s.lease) {
		return Record{}, ErrNotFound
	}
	if rec.Analysis == nil {
		return Record{}, ErrNotAnalyzed
	}
	at := now
	rec.ClaimedAt = &at
	s.records[id] = rec
	return copyRecord(rec), nil
}

func (s *MemoryStore) Release(ctx context.Context, id string, claimedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok && rec.ClaimedAt != nil && rec.ClaimedAt.Equal(claimedAt) {
		rec.ClaimedAt = nil
		s.records[id] = rec
	}
	return nil
}

func (s *MemoryStore) DeleteOwned(ctx context.Context, ownerID, id string, now time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || !rec.live(ownerID, now, s.lease) {
		return Record{}, ErrNotFound
	}
	delete(s.records, id)
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.records {
		if rec.Expired(now) && !rec.claimed(now, s.lease) {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = make(map[string]Record)
	return n, nil
}

func (s *MemoryStore) LivePaths(ctx context.Context) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make(map[string]struct{}, len(s.records))
	for _, rec := range s.records {
		paths[rec.StagedPath] = struct{}{}
	}
	return paths, nil
}

func copyRecord(rec Record) Record {
	rec.Analysis = cloneResult(rec.Analysis)
	if rec.ClaimedAt != nil {
		at := *rec.ClaimedAt
		rec.ClaimedAt = &at
	}
	return rec
}

func cloneResult(res *analysis.Result) *analysis.Result {
	if res == nil {
		return nil
	}
	out := *res
	out.Recommendations = cloneStrings(res.Recommendations)
	out.SkillGaps = cloneStrings(res.SkillGaps)
	out.ATSTips = cloneStrings(res.ATSTips)
	out.JobMatches = cloneStrings(res.JobMatches)
	out.ProfessionalDevelopment = cloneStrings(res.ProfessionalDevelopment)
	return &out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
