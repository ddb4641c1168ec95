package usage

import (
	"context"
	"database/sql"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed usage store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Append(ctx context.Context, entry Entry) (l Ledger, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Ledger{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
INSERT INTO usage_entries (id, user_id, temp_resume_id, provider, model, prompt_tokens, completion_tokens, total_tokens, cost, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.TempResumeID, entry.Provider, entry.Model,
		entry.InputTokens, entry.OutputTokens, entry.TotalTokens, entry.Cost, entry.CreatedAt); err != nil {
		return Ledger{}, err
	}

	l.UserID = entry.UserID
	err = tx.QueryRowContext(ctx, `
INSERT INTO usage_ledgers (user_id, total_tokens, total_cost, analysis_count, updated_at)
VALUES ($1, $2, $3, 1, $4)
ON CONFLICT (user_id) DO UPDATE SET
    total_tokens = usage_ledgers.total_tokens + EXCLUDED.total_tokens,
    total_cost = usage_ledgers.total_cost + EXCLUDED.total_cost,
    analysis_count = usage_ledgers.analysis_count + 1,
    updated_at = EXCLUDED.updated_at
RETURNING total_tokens, total_cost, analysis_count`,
		entry.UserID, entry.TotalTokens, entry.Cost, entry.CreatedAt,
	).Scan(&l.TotalTokens, &l.TotalCost, &l.AnalysisCount)
	if err != nil {
		return Ledger{}, err
	}
	if err = tx.Commit(); err != nil {
		return Ledger{}, err
	}
	return l, nil
}

func (s *pgStore) Ledger(ctx context.Context, userID string) (Ledger, error) {
	l := Ledger{UserID: userID}
	err := s.DB.QueryRowContext(ctx, `
SELECT total_tokens, total_cost, analysis_count FROM usage_ledgers WHERE user_id = $1`, userID,
	).Scan(&l.TotalTokens, &l.TotalCost, &l.AnalysisCount)
	if err == sql.ErrNoRows {
		return l, nil
	}
	if err != nil {
		return Ledger{}, err
	}
	return l, nil
}

func (s *pgStore) Monthly(ctx context.Context, userID string) ([]MonthlyUsage, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT to_char(date_trunc('month', created_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
       COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0),
       COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost), 0)
FROM usage_entries
WHERE user_id = $1
GROUP BY month
ORDER BY month DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlyUsage
	for rows.Next() {
		var m MonthlyUsage
		if err := rows.Scan(&m.Month, &m.Analyses, &m.InputTokens, &m.OutputTokens, &m.TotalTokens, &m.Cost); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
