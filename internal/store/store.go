// Package store wraps the Redis primitives the ingestion hot path relies on:
// insert-if-absent with TTL, fixed-window counters, and time-scored sets.
// All cross-request coordination goes through these; handlers hold no locks.
package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"pagesense/internal/config"
)

// Store provides atomic coordination primitives backed by Redis.
type Store struct {
	rdb *redis.Client
}

// New creates a Store from application config.
func New(cfg *config.Config) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
	}
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// InsertIfAbsent atomically claims key for ttl. Returns true when the key was
// absent (this caller won the slot), false on collision.
func (s *Store) InsertIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

// FixedWindowIncr increments a fixed-window counter and returns the new count.
// The expiry is attached on first increment so the window resets after ttl.
func (s *Store) FixedWindowIncr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("fixed window incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// WindowAdd records a (timestamp, member) marker in a time-scored set and
// refreshes its expiry.
func (s *Store) WindowAdd(ctx context.Context, key, member string, at time.Time, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("window add %s: %w", key, err)
	}
	return nil
}

// WindowCountSince prunes markers older than cutoff and counts the remainder.
func (s *Store) WindowCountSince(ctx context.Context, key string, cutoff time.Time) (int64, error) {
	cut := strconv.FormatInt(cutoff.UnixMilli(), 10)
	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+cut)
	count := pipe.ZCount(ctx, key, cut, "+inf")
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("window count %s: %w", key, err)
	}
	return count.Val(), nil
}

// WindowScores returns the scores (unix ms) of the newest n markers in
// ascending order. Used to derive inter-event intervals.
func (s *Store) WindowScores(ctx context.Context, key string, n int64) ([]int64, error) {
	zs, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("window scores %s: %w", key, err)
	}
	out := make([]int64, 0, len(zs))
	for i := len(zs) - 1; i >= 0; i-- {
		out = append(out, int64(zs[i].Score))
	}
	return out, nil
}

// HashGetAll returns all fields of a hash; an empty map when the key is absent.
func (s *Store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	vals, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return vals, nil
}

// HashSet writes hash fields and refreshes the key expiry.
func (s *Store) HashSet(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// ListPushCapped prepends a value to a list and trims it to max entries.
func (s *Store) ListPushCapped(ctx context.Context, key, value string, max int64, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, max-1)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	return nil
}

// ListRange returns up to n newest entries of a capped list.
func (s *Store) ListRange(ctx context.Context, key string, n int64) ([]string, error) {
	vals, err := s.rdb.LRange(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	return vals, nil
}
