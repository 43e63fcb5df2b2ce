package domain

// Camada de domínio do rate limit.
//
// Janela deslizante: cada cliente tem a lista de timestamps (segundos unix) das
// requisições admitidas; só contam os que estão dentro de [now-window, now].

import (
	"context"
	"time"
)

type Key string

// Policy define quantas requisições (Limit) cabem em cada janela (Window).
type Policy struct {
	Limit  int
	Window time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Limit: 100, Window: time.Hour}
}

func (p Policy) windowSeconds() int64 {
	return int64(p.Window / time.Second)
}

// Cutoff é o menor timestamp que ainda conta para a janela em now.
func (p Policy) Cutoff(now time.Time) int64 {
	return now.Unix() - p.windowSeconds()
}

type Decision struct {
	Allowed bool
	// Count é o número de requisições na janela (incluindo esta, se admitida).
	Count     int
	Limit     int
	Remaining int
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// State é o mapeamento persistido cliente → timestamps admitidos.
type State map[Key][]int64

// Prune descarta timestamps anteriores a cutoff e remove chaves que ficaram vazias.
func (s State) Prune(cutoff int64) {
	for k, ts := range s {
		kept := Window(ts, cutoff)
		if len(kept) == 0 {
			delete(s, k)
			continue
		}
		s[k] = kept
	}
}

// Admit aplica o algoritmo completo sobre o estado em memória: prune de todas as
// chaves e, se couber, registra now para key. Em rejeição nada é acrescentado.
func (s State) Admit(key Key, now time.Time, p Policy) Decision {
	s.Prune(p.Cutoff(now))

	dec := Evaluate(s[key], now, p)
	if dec.Allowed {
		s[key] = append(s[key], now.Unix())
	}
	return dec
}

// Window devolve os timestamps >= cutoff, preservando a ordem.
func Window(ts []int64, cutoff int64) []int64 {
	out := ts[:0:0]
	for _, t := range ts {
		if t >= cutoff {
			out = append(out, t)
		}
	}
	return out
}

// Evaluate decide a admissão dado o conteúdo já podado da janela.
// count == Limit rejeita; count < Limit admite.
func Evaluate(window []int64, now time.Time, p Policy) Decision {
	count := len(window)
	if count >= p.Limit {
		return Decision{
			Allowed:    false,
			Count:      count,
			Limit:      p.Limit,
			Remaining:  0,
			RetryAfter: retryAfter(window, now, p),
		}
	}
	return Decision{
		Allowed:   true,
		Count:     count + 1,
		Limit:     p.Limit,
		Remaining: p.Limit - count - 1,
	}
}

// retryAfter é o tempo até o timestamp mais antigo sair da janela.
func retryAfter(window []int64, now time.Time, p Policy) time.Duration {
	if len(window) == 0 {
		return 0
	}
	oldest := window[0]
	for _, t := range window[1:] {
		if t < oldest {
			oldest = t
		}
	}
	secs := oldest + p.windowSeconds() + 1 - now.Unix()
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// WindowStore persiste o estado e executa Admit de forma atômica
// (load → prune/check → mutate → persist dentro de uma mesma seção crítica).
type WindowStore interface {
	Admit(ctx context.Context, key Key, now time.Time, p Policy) (Decision, error)
}

// Admin é implementado pelos stores que permitem inspeção e limpeza por chave.
type Admin interface {
	Peek(ctx context.Context, key Key, now time.Time, p Policy) ([]int64, error)
	Reset(ctx context.Context, key Key) error
}
