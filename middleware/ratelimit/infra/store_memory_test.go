package infra

import (
	"context"
	"testing"
	"time"

	"visitor-tracker/middleware/ratelimit/domain"
)

func TestMemoryStore_Scenario(t *testing.T) {
	s := NewMemoryStore(WithCleanupEvery(0))
	p := domain.Policy{Limit: 2, Window: 10 * time.Second}

	want := map[int64]bool{0: true, 3: true, 6: false, 11: true}
	for _, off := range []int64{0, 3, 6, 11} {
		dec, err := s.Admit(context.Background(), "A", ts(off), p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dec.Allowed != want[off] {
			t.Fatalf("t=%d: expected allowed=%v", off, want[off])
		}
	}
}

func TestMemoryStore_CleanupRemovesExpiredKeys(t *testing.T) {
	now := ts(0)
	s := NewMemoryStore(WithCleanupEvery(0), WithClock(func() time.Time { return now }))
	p := domain.Policy{Limit: 5, Window: 10 * time.Second}

	if _, err := s.Admit(context.Background(), "k", ts(0), p); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected one key, got %d", s.Len())
	}

	now = ts(60)
	s.Cleanup()

	if s.Len() != 0 {
		t.Fatalf("expected expired key to be removed, got %d", s.Len())
	}
}

func TestMemoryStore_Reset(t *testing.T) {
	s := NewMemoryStore(WithCleanupEvery(0))
	p := domain.Policy{Limit: 1, Window: time.Hour}
	ctx := context.Background()

	s.Admit(ctx, "k", ts(0), p)
	if dec, _ := s.Admit(ctx, "k", ts(1), p); dec.Allowed {
		t.Fatalf("expected reject before reset")
	}

	if err := s.Reset(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if dec, _ := s.Admit(ctx, "k", ts(2), p); !dec.Allowed {
		t.Fatalf("expected admit after reset")
	}
}

func TestMemoryStore_JanitorPrunesExpiredKeys(t *testing.T) {
	s := NewMemoryStore(
		WithCleanupEvery(time.Millisecond),
		WithClock(func() time.Time { return ts(100) }),
	)
	p := domain.Policy{Limit: 5, Window: 10 * time.Second}
	if _, err := s.Admit(context.Background(), "k", ts(0), p); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx)

	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected janitor to prune expired key")
		}
		time.Sleep(time.Millisecond)
	}
}
