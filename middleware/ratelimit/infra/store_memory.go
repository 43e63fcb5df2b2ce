package infra

import (
	"context"
	"sync"
	"time"

	"visitor-tracker/middleware/ratelimit/domain"
)

// MemoryStore mantém o State em memória, protegido por mutex, com limpeza periódica.
// Não é compartilhado entre instâncias.
type MemoryStore struct {
	mu    sync.Mutex
	state domain.State

	// window usada pelo janitor; atualizada a cada Admit.
	window       time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type MemoryStoreOption func(*MemoryStore)

func WithCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		state:        domain.State{},
		window:       domain.DefaultPolicy().Window,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Admit implementa domain.WindowStore.
func (s *MemoryStore) Admit(_ context.Context, key domain.Key, now time.Time, p domain.Policy) (domain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window = p.Window
	return s.state.Admit(key, now, p), nil
}

func (s *MemoryStore) Peek(_ context.Context, key domain.Key, now time.Time, p domain.Policy) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.Window(s.state[key], p.Cutoff(now)), nil
}

func (s *MemoryStore) Reset(_ context.Context, key domain.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.state, key)
	return nil
}

// Len devolve o número de chaves com timestamps guardados.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state)
}

// Cleanup poda todas as chaves usando a última janela vista.
func (s *MemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := domain.Policy{Window: s.window}
	s.state.Prune(p.Cutoff(s.now()))
}

// StartJanitor inicia uma goroutine que poda chaves expiradas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
