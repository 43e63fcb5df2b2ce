package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitor-tracker/middleware/ratelimit/domain"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisStore_Scenario(t *testing.T) {
	_, rdb := setupRedis(t)
	s := NewRedisStore(rdb)
	p := domain.Policy{Limit: 2, Window: 10 * time.Second}
	ctx := context.Background()

	steps := []struct {
		off  int64
		want bool
	}{{0, true}, {3, true}, {6, false}, {11, true}}
	for _, step := range steps {
		dec, err := s.Admit(ctx, "A", ts(step.off), p)
		require.NoError(t, err)
		assert.Equal(t, step.want, dec.Allowed, "t=%d", step.off)
	}

	got, err := s.Peek(ctx, "A", ts(11), p)
	require.NoError(t, err)
	assert.Equal(t, []int64{base + 3, base + 11}, got)
}

func TestRedisStore_RejectReportsRetryAfter(t *testing.T) {
	_, rdb := setupRedis(t)
	s := NewRedisStore(rdb)
	p := domain.Policy{Limit: 1, Window: 10 * time.Second}
	ctx := context.Background()

	_, err := s.Admit(ctx, "k", ts(0), p)
	require.NoError(t, err)

	dec, err := s.Admit(ctx, "k", ts(4), p)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 1, dec.Count)
	assert.Equal(t, 7*time.Second, dec.RetryAfter)
}

func TestRedisStore_SameSecondRequestsCountSeparately(t *testing.T) {
	_, rdb := setupRedis(t)
	s := NewRedisStore(rdb)
	p := domain.Policy{Limit: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		dec, err := s.Admit(ctx, "k", ts(0), p)
		require.NoError(t, err)
		require.True(t, dec.Allowed)
		assert.Equal(t, i+1, dec.Count)
	}
	dec, err := s.Admit(ctx, "k", ts(0), p)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
}

func TestRedisStore_KeyHasExpiry(t *testing.T) {
	mr, rdb := setupRedis(t)
	s := NewRedisStore(rdb, WithKeyPrefix("test:rl:"))

	_, err := s.Admit(context.Background(), "1.2.3.4", ts(0), domain.Policy{Limit: 5, Window: 10 * time.Second})
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:rl:1.2.3.4"))
	assert.Equal(t, 11*time.Second, mr.TTL("test:rl:1.2.3.4"))
}

func TestRedisStore_Reset(t *testing.T) {
	mr, rdb := setupRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	_, err := s.Admit(ctx, "k", ts(0), domain.DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx, "k"))

	assert.False(t, mr.Exists("visitor:ratelimit:k"))
}

func TestRedisStore_ErrorWhenUnavailable(t *testing.T) {
	mr, rdb := setupRedis(t)
	mr.Close()

	_, err := NewRedisStore(rdb).Admit(context.Background(), "k", ts(0), domain.DefaultPolicy())
	assert.Error(t, err)
}
