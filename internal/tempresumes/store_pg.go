package tempresumes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jobboard-backend/internal/analysis"
)

const recordColumns = `id, owner_id, staged_path, file_name, content_type, size_bytes, analysis, created_at, expires_at, claimed_at`

// PGStore keeps temp resumes in the temp_resumes table. Lease defaults to DefaultClaimLease.
type PGStore struct {
	DB    *sql.DB
	Lease time.Duration
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PGStore) Create(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	payload, err := marshalAnalysis(rec.Analysis)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO temp_resumes (id, owner_id, staged_path, file_name, content_type, size_bytes, analysis, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.OwnerID, rec.StagedPath, rec.FileName, rec.ContentType, rec.SizeBytes, payload, rec.CreatedAt, rec.ExpiresAt)
	return err
}

func (s *PGStore) GetOwned(ctx context.Context, ownerID, id string, now time.Time) (Record, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM temp_resumes
WHERE id = $1 AND owner_id = $2 AND expires_at > $3 AND (claimed_at IS NULL OR claimed_at <= $4)`,
		id, ownerID, now, s.staleBefore(now))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *PGStore) SetAnalysis(ctx context.Context, ownerID, id string, result analysis.Result, now time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE temp_resumes SET analysis = $1
WHERE id = $2 AND owner_id = $3 AND expires_at > $4 AND (claimed_at IS NULL OR claimed_at <= $5)`,
		payload, id, ownerID, now, s.staleBefore(now))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Claim(ctx context.Context, ownerID, id string, now time.Time) (rec Record, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	rec, err = scanRecord(tx.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM temp_resumes
WHERE id = $1 AND owner_id = $2 AND expires_at > $3 AND (claimed_at IS NULL OR claimed_at <= $4)
FOR UPDATE`,
		id, ownerID, now, s.staleBefore(now)))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return Record{}, err
	}
	if err != nil {
		return Record{}, err
	}
	if rec.Analysis == nil {
		err = ErrNotAnalyzed
		return Record{}, err
	}
	// timestamptz keeps microseconds; Release matches on the stored value.
	at := now.Truncate(time.Microsecond)
	if _, err = tx.ExecContext(ctx, `UPDATE temp_resumes SET claimed_at = $1 WHERE id = $2`, at, id); err != nil {
		return Record{}, err
	}
	if err = tx.Commit(); err != nil {
		return Record{}, err
	}
	rec.ClaimedAt = &at
	return rec, nil
}

func (s *PGStore) Release(ctx context.Context, id string, claimedAt time.Time) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE temp_resumes SET claimed_at = NULL WHERE id = $1 AND claimed_at = $2`,
		id, claimedAt.Truncate(time.Microsecond))
	return err
}

func (s *PGStore) DeleteOwned(ctx context.Context, ownerID, id string, now time.Time) (Record, error) {
	row := s.DB.QueryRowContext(ctx, `
DELETE FROM temp_resumes
WHERE id = $1 AND owner_id = $2 AND expires_at > $3 AND (claimed_at IS NULL OR claimed_at <= $4)
RETURNING `+recordColumns,
		id, ownerID, now, s.staleBefore(now))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM temp_resumes WHERE id = $1`, id)
	return err
}

func (s *PGStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM temp_resumes
WHERE expires_at <= $1 AND (claimed_at IS NULL OR claimed_at <= $2)
ORDER BY expires_at ASC
LIMIT $3`, now, s.staleBefore(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGStore) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM temp_resumes`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PGStore) LivePaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT staged_path FROM temp_resumes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths[path] = struct{}{}
	}
	return paths, rows.Err()
}

func (s *PGStore) staleBefore(now time.Time) time.Time {
	return now.Add(-leaseOrDefault(s.Lease))
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec     Record
		raw     []byte
		claimed sql.NullTime
	)
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.StagedPath,
		&rec.FileName,
		&rec.ContentType,
		&rec.SizeBytes,
		&raw,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&claimed,
	); err != nil {
		return Record{}, err
	}
	if len(raw) > 0 {
		var res analysis.Result
		if err := json.Unmarshal(raw, &res); err != nil {
			return Record{}, fmt.Errorf("decode analysis: %w", err)
		}
		rec.Analysis = &res
	}
	if claimed.Valid {
		at := claimed.Time
		rec.ClaimedAt = &at
	}
	return rec, nil
}

func marshalAnalysis(res *analysis.Result) ([]byte, error) {
	if res == nil {
		return nil, nil
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return payload, nil
}
