package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"visitor-tracker/middleware/ratelimit/domain"
)

// admitScript roda a janela inteira dentro do Redis (atômico entre processos).
//
// KEYS[1] = sorted set da chave (score = segundos unix)
// ARGV    = now, cutoff, limit, ttl (s), member
// retorno = {allowed (0|1), count, oldest}
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
local oldest = tonumber(ARGV[1])
local first = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end
if count >= tonumber(ARGV[3]) then
	return {0, count, oldest}
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[5])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return {1, count + 1, oldest}
`)

// RedisStore guarda a janela de cada chave em um sorted set.
// A expiração da chave remove janelas vazias.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisStoreOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: "visitor:ratelimit"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k domain.Key) string {
	return s.prefix + ":" + string(k)
}

// Admit implementa domain.WindowStore.
func (s *RedisStore) Admit(ctx context.Context, key domain.Key, now time.Time, p domain.Policy) (domain.Decision, error) {
	ttl := int64(p.Window/time.Second) + 1
	member := strconv.FormatInt(now.Unix(), 10) + "-" + uuid.NewString()

	res, err := admitScript.Run(ctx, s.rdb, []string{s.key(key)},
		now.Unix(), p.Cutoff(now), p.Limit, ttl, member,
	).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("redis admit %s: %w", key, err)
	}
	if len(res) != 3 {
		return domain.Decision{}, fmt.Errorf("redis admit %s: unexpected reply %v", key, res)
	}

	allowed, count, oldest := res[0] == 1, int(res[1]), res[2]
	if allowed {
		return domain.Decision{
			Allowed:   true,
			Count:     count,
			Limit:     p.Limit,
			Remaining: p.Limit - count,
		}, nil
	}

	retry := oldest + int64(p.Window/time.Second) + 1 - now.Unix()
	if retry < 1 {
		retry = 1
	}
	return domain.Decision{
		Allowed:    false,
		Count:      count,
		Limit:      p.Limit,
		RetryAfter: time.Duration(retry) * time.Second,
	}, nil
}

func (s *RedisStore) Peek(ctx context.Context, key domain.Key, now time.Time, p domain.Policy) ([]int64, error) {
	zs, err := s.rdb.ZRangeByScoreWithScores(ctx, s.key(key), &redis.ZRangeBy{
		Min: strconv.FormatInt(p.Cutoff(now), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis peek %s: %w", key, err)
	}
	out := make([]int64, 0, len(zs))
	for _, z := range zs {
		out = append(out, int64(z.Score))
	}
	return out, nil
}

func (s *RedisStore) Reset(ctx context.Context, key domain.Key) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis reset %s: %w", key, err)
	}
	return nil
}
