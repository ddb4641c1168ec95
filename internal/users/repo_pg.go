package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"jobboard-backend/internal/analysis"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) SetResume(ctx context.Context, userID string, resume PermanentResume) (prev *PermanentResume, err error) {
	payload, err := json.Marshal(resume.Analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var (
		path     sql.NullString
		raw      []byte
		analyzed sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `
SELECT resume_path, resume_analysis, last_analyzed FROM users WHERE id = $1 FOR UPDATE`, userID,
	).Scan(&path, &raw, &analyzed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return nil, err
	case path.Valid && path.String != "":
		prev = &PermanentResume{Path: path.String, LastAnalyzed: analyzed.Time}
		if len(raw) > 0 {
			var res analysis.Result
			if jsonErr := json.Unmarshal(raw, &res); jsonErr == nil {
				prev.Analysis = res
			}
		}
	}

	if _, err = tx.ExecContext(ctx, `
INSERT INTO users (id, resume_path, resume_analysis, last_analyzed, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (id) DO UPDATE SET
  resume_path = EXCLUDED.resume_path,
  resume_analysis = EXCLUDED.resume_analysis,
  last_analyzed = EXCLUDED.last_analyzed,
  updated_at = now()`,
		userID, resume.Path, payload, resume.LastAnalyzed); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return prev, nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT id, email, resume_path, resume_analysis, last_analyzed, created_at, updated_at
FROM users
WHERE id = $1
LIMIT 1`
	var (
		user     User
		email    sql.NullString
		path     sql.NullString
		raw      []byte
		analyzed sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&email,
		&path,
		&raw,
		&analyzed,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.Email = email.String
	if path.Valid && path.String != "" {
		user.Resume = &PermanentResume{Path: path.String, LastAnalyzed: analyzed.Time}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &user.Resume.Analysis); err != nil {
				return User{}, fmt.Errorf("decode resume analysis: %w", err)
			}
		}
	}
	return user, nil
}
