package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	start    time.Time
	lastSeen time.Time
}

// MemoryStore guarda sessões em memória; sessões sem atividade por mais de ttl expiram.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, sessions: make(map[string]entry)}
}

func (s *MemoryStore) Touch(_ context.Context, id string, now time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if ok && s.expired(e, now) {
		ok = false
	}
	if !ok {
		e = entry{start: now}
	}
	e.lastSeen = now
	s.sessions[id] = e
	return e.start, nil
}

func (s *MemoryStore) expired(e entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup remove sessões expiradas em relação a now.
func (s *MemoryStore) Cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
		}
	}
}

// StartJanitor executa Cleanup a cada every até ctx ser cancelado.
func (s *MemoryStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 || s.ttl <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				s.Cleanup(now)
			}
		}
	}()
}
