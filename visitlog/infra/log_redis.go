package infra

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"visitor-tracker/visitlog/domain"
)

const DefaultRedisLogKey = "visitor:log"

// RedisLog acrescenta cada visita (JSON) ao fim de uma lista; RPUSH é atômico.
type RedisLog struct {
	rdb *redis.Client
	key string
}

func NewRedisLog(rdb *redis.Client, key string) *RedisLog {
	if key == "" {
		key = DefaultRedisLogKey
	}
	return &RedisLog{rdb: rdb, key: key}
}

func (l *RedisLog) Append(ctx context.Context, rec domain.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode visit: %w", err)
	}
	if err := l.rdb.RPush(ctx, l.key, b).Err(); err != nil {
		return fmt.Errorf("redis rpush %s: %w", l.key, err)
	}
	return nil
}

// All ignora itens que não decodificam.
func (l *RedisLog) All(ctx context.Context) ([]domain.Record, error) {
	items, err := l.rdb.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", l.key, err)
	}
	out := make([]domain.Record, 0, len(items))
	for _, it := range items {
		var rec domain.Record
		if err := json.Unmarshal([]byte(it), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
