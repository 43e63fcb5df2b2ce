package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore guarda o início de cada sessão em uma string com expiração,
// compartilhada entre instâncias.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "visitor:session", ttl: ttl}
}

func (s *RedisStore) Touch(ctx context.Context, id string, now time.Time) (time.Time, error) {
	key := s.prefix + ":" + id

	pipe := s.rdb.TxPipeline()
	pipe.SetNX(ctx, key, now.Unix(), 0)
	get := pipe.Get(ctx, key)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return time.Time{}, fmt.Errorf("session touch: %w", err)
	}

	secs, err := strconv.ParseInt(get.Val(), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("session touch: invalid start %q: %w", get.Val(), err)
	}
	return time.Unix(secs, 0), nil
}
