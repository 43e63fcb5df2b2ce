package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"visitor-tracker/middleware/ratelimit/domain"
)

// RedisStatsStore acumula as decisões do rate limit em Redis:
//
//	<prefix>:total             hash allowed/denied/unknown (cumulativo, sem expiração)
//	<prefix>:minute:<yyyymmddhhmm> hash allowed/denied do minuto (expira em ttl)
//	<prefix>:denied            zset chave → bloqueios (só com trackKeys; expira em ttl)
type RedisStatsStore struct {
	rdb *redis.Client

	prefix    string
	ttl       time.Duration
	bucket    string // "minute" (padrão) ou "none"
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) totalKey() string  { return s.prefix + ":total" }
func (s *RedisStatsStore) deniedKey() string { return s.prefix + ":denied" }

func (s *RedisStatsStore) minuteKey(at time.Time) string {
	return s.prefix + ":minute:" + at.UTC().Format("200601021504")
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := decisionField(ev.Allowed)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)
	if isUnknownKey(ev.Key) {
		pipe.HIncrBy(ctx, s.totalKey(), "unknown", 1)
	}

	if s.bucket == "minute" {
		k := s.minuteKey(at)
		pipe.HIncrBy(ctx, k, field, 1)
		s.expire(ctx, pipe, k)
	}

	if s.trackKeys && !ev.Allowed && ev.Key != "" {
		pipe.ZIncrBy(ctx, s.deniedKey(), 1, string(ev.Key))
		s.expire(ctx, pipe, s.deniedKey())
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stats record: %w", err)
	}
	return nil
}

func (s *RedisStatsStore) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

// Snapshot lê o hash de totais.
func (s *RedisStatsStore) Snapshot(ctx context.Context) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.totalKey()).Result()
	if err != nil {
		return Counters{}, fmt.Errorf("redis stats snapshot: %w", err)
	}
	var c Counters
	c.Allowed, _ = strconv.ParseInt(vals["allowed"], 10, 64)
	c.Denied, _ = strconv.ParseInt(vals["denied"], 10, 64)
	c.Unknown, _ = strconv.ParseInt(vals["unknown"], 10, 64)
	return c, nil
}

// Minute devolve os contadores do minuto de at (zero se já expirou).
func (s *RedisStatsStore) Minute(ctx context.Context, at time.Time) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.minuteKey(at)).Result()
	if err != nil {
		return Counters{}, fmt.Errorf("redis stats minute: %w", err)
	}
	var c Counters
	c.Allowed, _ = strconv.ParseInt(vals["allowed"], 10, 64)
	c.Denied, _ = strconv.ParseInt(vals["denied"], 10, 64)
	return c, nil
}

// TopDenied devolve as n chaves mais bloqueadas (vazio sem trackKeys).
func (s *RedisStatsStore) TopDenied(ctx context.Context, n int) ([]KeyCount, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := s.rdb.ZRevRangeWithScores(ctx, s.deniedKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis stats top denied: %w", err)
	}
	out := make([]KeyCount, 0, len(zs))
	for _, z := range zs {
		key, _ := z.Member.(string)
		out = append(out, KeyCount{Key: key, Denied: int64(z.Score)})
	}
	return out, nil
}
