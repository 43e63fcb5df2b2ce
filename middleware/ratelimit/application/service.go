package application

import (
	"context"
	"fmt"
	"time"

	"visitor-tracker/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store  domain.WindowStore
	Policy domain.Policy
	// Now permite injetar o relógio nos testes. Padrão: time.Now.
	Now func() time.Time
}

// Decide consulta o store para key.
//
// Se o store falhar, a decisão devolvida é Allowed (fail-open) junto com o erro;
// cabe ao chamador decidir se respeita a decisão ou bloqueia.
func (s Service) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	policy := s.Policy
	if policy.Limit <= 0 || policy.Window <= 0 {
		policy = domain.DefaultPolicy()
	}
	if s.Store == nil {
		return domain.Decision{Allowed: true, Limit: policy.Limit, Remaining: policy.Limit}, nil
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	dec, err := s.Store.Admit(ctx, key, now(), policy)
	if err != nil {
		return domain.Decision{Allowed: true, Limit: policy.Limit}, fmt.Errorf("rate limit store: %w", err)
	}
	return dec, nil
}
