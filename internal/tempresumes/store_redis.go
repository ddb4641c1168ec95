package tempresumes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"jobboard-backend/internal/analysis"
)

const maxTxRetries = 5

// RedisStore keeps each record under its own key with a native expiry at
// ExpiresAt. An expiry index and a path index outlive the key so the sweeper
// can still reclaim the staged file after Redis has dropped the record.
type RedisStore struct {
	client *redis.Client
	prefix string
	lease  time.Duration
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisRecord struct {
	ID          string           `json:"id"`
	OwnerID     string           `json:"ownerId"`
	StagedPath  string           `json:"stagedPath"`
	FileName    string           `json:"fileName"`
	ContentType string           `json:"contentType"`
	SizeBytes   int64            `json:"sizeBytes"`
	Analysis    *analysis.Result `json:"analysis,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	ClaimedAt   *time.Time       `json:"claimedAt,omitempty"`
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, prefix string, lease time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "tempresumes:"
	}
	return &RedisStore{client: client, prefix: prefix, lease: leaseOrDefault(lease)}
}

func (s *RedisStore) recordKey(id string) string { return s.prefix + "record:" + id }
func (s *RedisStore) expiryKey() string          { return s.prefix + "expiry" }
func (s *RedisStore) pathsKey() string           { return s.prefix + "paths" }

func (s *RedisStore) Create(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	payload, err := encodeRedis(rec)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.ID), payload, 0)
		pipe.PExpireAt(ctx, s.recordKey(rec.ID), rec.ExpiresAt)
		pipe.ZAdd(ctx, s.expiryKey(), redis.Z{Score: float64(rec.ExpiresAt.UnixMilli()), Member: rec.ID})
		pipe.HSet(ctx, s.pathsKey(), rec.ID, rec.StagedPath)
		return nil
	})
	return err
}

func (s *RedisStore) GetOwned(ctx context.Context, ownerID, id string, now time.Time) (Record, error) {
	rec, ok, err := s.load(ctx, s.client, id)
	if err != nil {
		return Record{}, err
	}
	if !ok || !rec.live(ownerID, now, s.lease) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *RedisStore) SetAnalysis(ctx context.Context, ownerID, id string, result analysis.Result, now time.Time) error {
	_, err := s.update(ctx, id, func(rec Record, ok bool) (*Record, error) {
		if !ok || !rec.live(ownerID, now, s.lease) {
			return nil, ErrNotFound
		}
		rec.Analysis = &result
		return &rec, nil
	})
	return err
}

func (s *RedisStore) Claim(ctx context.Context, ownerID, id string, now time.Time) (Record, error) {
	return s.update(ctx, id, func(rec Record, ok bool) (*Record, error) {
		if !ok || !rec.live(ownerID, now, s.lease) {
			return nil, ErrNotFound
		}
		if rec.Analysis == nil {
			return nil, ErrNotAnalyzed
		}
		at := now
		rec.ClaimedAt = &at
		return &rec, nil
	})
}

func (s *RedisStore) Release(ctx context.Context, id string, claimedAt time.Time) error {
	_, err := s.update(ctx, id, func(rec Record, ok bool) (*Record, error) {
		if !ok || rec.ClaimedAt == nil || !rec.ClaimedAt.Equal(claimedAt) {
			return nil, nil
		}
		rec.ClaimedAt = nil
		return &rec, nil
	})
	return err
}

func (s *RedisStore) DeleteOwned(ctx context.Context, ownerID, id string, now time.Time) (Record, error) {
	var deleted Record
	err := s.watch(ctx, id, func(tx *redis.Tx) error {
		rec, ok, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok || !rec.live(ownerID, now, s.lease) {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.queueDelete(ctx, pipe, id)
			return nil
		})
		deleted = rec
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return deleted, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueDelete(ctx, pipe, id)
		return nil
	})
	return err
}

func (s *RedisStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 500
	}
	ids, err := s.client.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := s.load(ctx, s.client, id)
		if err != nil {
			return nil, err
		}
		if ok {
			if rec.claimed(now, s.lease) {
				continue
			}
			out = append(out, rec)
			continue
		}
		// Redis already expired the key; the path index still knows the file.
		path, err := s.client.HGet(ctx, s.pathsKey(), id).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		out = append(out, Record{ID: id, StagedPath: path})
	}
	return out, nil
}

func (s *RedisStore) DeleteAll(ctx context.Context) (int, error) {
	ids, err := s.client.HKeys(ctx, s.pathsKey()).Result()
	if err != nil {
		return 0, err
	}
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.recordKey(id))
		}
		pipe.Del(ctx, s.expiryKey(), s.pathsKey())
		return nil
	}); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *RedisStore) LivePaths(ctx context.Context) (map[string]struct{}, error) {
	all, err := s.client.HGetAll(ctx, s.pathsKey()).Result()
	if err != nil {
		return nil, err
	}
	paths := make(map[string]struct{}, len(all))
	for _, path := range all {
		paths[path] = struct{}{}
	}
	return paths, nil
}

func (s *RedisStore) queueDelete(ctx context.Context, pipe redis.Pipeliner, id string) {
	pipe.Del(ctx, s.recordKey(id))
	pipe.ZRem(ctx, s.expiryKey(), id)
	pipe.HDel(ctx, s.pathsKey(), id)
}

// update applies fn to the record under WATCH. A nil record from fn leaves it untouched.
func (s *RedisStore) update(ctx context.Context, id string, fn func(rec Record, ok bool) (*Record, error)) (Record, error) {
	var out Record
	err := s.watch(ctx, id, func(tx *redis.Tx) error {
		rec, ok, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := fn(rec, ok)
		if err != nil || next == nil {
			return err
		}
		payload, err := encodeRedis(*next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.recordKey(id), payload, 0)
			pipe.PExpireAt(ctx, s.recordKey(id), next.ExpiresAt)
			return nil
		})
		out = *next
		return err
	})
	return out, err
}

func (s *RedisStore) watch(ctx context.Context, id string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, s.recordKey(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("temp resume %s: too many concurrent updates", id)
}

func (s *RedisStore) load(ctx context.Context, c getter, id string) (Record, bool, error) {
	raw, err := c.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var r redisRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, false, fmt.Errorf("decode temp resume %s: %w", id, err)
	}
	return Record{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		StagedPath:  r.StagedPath,
		FileName:    r.FileName,
		ContentType: r.ContentType,
		SizeBytes:   r.SizeBytes,
		Analysis:    r.Analysis,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		ClaimedAt:   r.ClaimedAt,
	}, true, nil
}

func encodeRedis(rec Record) ([]byte, error) {
	payload, err := json.Marshal(redisRecord{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		StagedPath:  rec.StagedPath,
		FileName:    rec.FileName,
		ContentType: rec.ContentType,
		SizeBytes:   rec.SizeBytes,
		Analysis:    rec.Analysis,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
		ClaimedAt:   rec.ClaimedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode temp resume: %w", err)
	}
	return payload, nil
}
