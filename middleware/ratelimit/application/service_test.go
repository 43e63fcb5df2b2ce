package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"visitor-tracker/middleware/ratelimit/domain"
)

type fakeStore struct {
	dec    domain.Decision
	err    error
	called int
	gotAt  time.Time
	gotP   domain.Policy
}

func (s *fakeStore) Admit(_ context.Context, _ domain.Key, now time.Time, p domain.Policy) (domain.Decision, error) {
	s.called++
	s.gotAt = now
	s.gotP = p
	return s.dec, s.err
}

// stateStore aplica o algoritmo real sobre um State em memória.
type stateStore struct{ st domain.State }

func (s *stateStore) Admit(_ context.Context, key domain.Key, now time.Time, p domain.Policy) (domain.Decision, error) {
	return s.st.Admit(key, now, p), nil
}

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{}
	dec, err := svc.Decide(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_UsesDefaultPolicyWhenUnset(t *testing.T) {
	store := &fakeStore{dec: domain.Decision{Allowed: true}}
	svc := Service{Store: store}

	if _, err := svc.Decide(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.gotP != domain.DefaultPolicy() {
		t.Fatalf("expected default policy, got %+v", store.gotP)
	}
}

func TestService_Decide_PassesInjectedClock(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	store := &fakeStore{dec: domain.Decision{Allowed: true}}
	svc := Service{Store: store, Now: func() time.Time { return fixed }}

	if _, err := svc.Decide(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.gotAt.Equal(fixed) {
		t.Fatalf("expected injected time, got %s", store.gotAt)
	}
}

func TestService_Decide_StoreErrorFailsOpen(t *testing.T) {
	boom := errors.New("disk full")
	svc := Service{Store: &fakeStore{err: boom}}

	dec, err := svc.Decide(context.Background(), "k")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected fail-open decision")
	}
}

func TestService_Decide_Scenario(t *testing.T) {
	var now int64
	svc := Service{
		Store:  &stateStore{st: domain.State{}},
		Policy: domain.Policy{Limit: 2, Window: 10 * time.Second},
		Now:    func() time.Time { return time.Unix(now, 0) },
	}

	for _, step := range []struct {
		t    int64
		want bool
	}{{0, true}, {3, true}, {6, false}, {11, true}} {
		now = step.t
		dec, err := svc.Decide(context.Background(), "A")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dec.Allowed != step.want {
			t.Fatalf("t=%d expected allowed=%v", step.t, step.want)
		}
	}
}
