package infra

import (
	"context"
	"sort"
	"sync"

	"visitor-tracker/middleware/clientip"
	"visitor-tracker/middleware/ratelimit/domain"
)

// Counters soma decisões. Unknown conta as decisões cuja chave é o IP "UNKNOWN"
// (clientes sem endereço válido dividem uma única janela).
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
	Unknown int64 `json:"unknown"`
}

func (c *Counters) add(ev domain.StatsEvent) {
	if ev.Allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
	if isUnknownKey(ev.Key) {
		c.Unknown++
	}
}

// KeyCount é uma chave e quantas vezes foi bloqueada.
type KeyCount struct {
	Key    string `json:"key"`
	Denied int64  `json:"denied"`
}

// StatsSnapshotter é implementado pelos stats stores que sabem devolver o total acumulado.
type StatsSnapshotter interface {
	Snapshot(ctx context.Context) (Counters, error)
}

// DeniedRanker lista as chaves mais bloqueadas (precisa de trackKeys).
type DeniedRanker interface {
	TopDenied(ctx context.Context, n int) ([]KeyCount, error)
}

func decisionField(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func isUnknownKey(k domain.Key) bool { return string(k) == clientip.Unknown }

// MemoryStatsStore guarda os totais e, com trackKeys, os bloqueios por chave.
// Não faz expiração; o mapa por chave cresce com o número de IPs bloqueados.
type MemoryStatsStore struct {
	mu     sync.Mutex
	total  Counters
	denied map[string]int64

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{denied: make(map[string]int64)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)
	if s.trackKeys && !ev.Allowed && ev.Key != "" {
		s.denied[string(ev.Key)]++
	}
	return nil
}

func (s *MemoryStatsStore) Snapshot(context.Context) (Counters, error) {
	return s.Total(), nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// TopDenied ordena por bloqueios (desc) e depois por chave.
func (s *MemoryStatsStore) TopDenied(_ context.Context, n int) ([]KeyCount, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	out := make([]KeyCount, 0, len(s.denied))
	for k, v := range s.denied {
		out = append(out, KeyCount{Key: k, Denied: v})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Denied != out[j].Denied {
			return out[i].Denied > out[j].Denied
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// FanoutStats repassa cada evento para todos os stores; o primeiro erro é devolvido,
// mas todos os stores recebem o evento.
type FanoutStats []domain.StatsStore

func (f FanoutStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ DeniedRanker = (*MemoryStatsStore)(nil)
	_ DeniedRanker = (*RedisStatsStore)(nil)
)
