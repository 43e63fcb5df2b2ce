package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"visitor-tracker/middleware/clientip"
	"visitor-tracker/middleware/ratelimit/application"
	"visitor-tracker/middleware/ratelimit/domain"
)

// RejectBody é o corpo text/plain das respostas 429.
const RejectBody = "Too many requests. Please try again later."

type KeyFunc func(r *http.Request) string

type Options struct {
	Store  domain.WindowStore
	Policy domain.Policy
	Stats  domain.StatsStore
	KeyFn  KeyFunc
	// KeyHeader, se definido e presente na requisição, substitui o IP como chave.
	KeyHeader           string
	RejectStatus        int
	AddRateLimitHeaders bool

	// FailClosed responde 503 quando o store falha; por padrão a requisição passa (fail-open).
	FailClosed bool
	// OnError recebe falhas do store (nunca erros de stats).
	OnError func(r *http.Request, key string, err error)
	// OnReject é chamado a cada requisição bloqueada.
	OnReject func(r *http.Request, key string, dec domain.Decision)

	Now func() time.Time
}

// DefaultKeyFunc usa o header keyHeader (se presente) e, senão, o IP do cliente
// resolvido pelo middleware clientip (ou resolvido na hora, com a precedência padrão).
func DefaultKeyFunc(keyHeader string) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}
		return clientip.FromRequest(r)
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	svc := application.Service{
		Store:  opts.Store,
		Policy: opts.Policy,
		Now:    now,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			dec, err := svc.Decide(r.Context(), domain.Key(key))
			if err != nil {
				if opts.OnError != nil {
					opts.OnError(r, key, err)
				}
				if opts.FailClosed {
					http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
					return
				}
			}

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.Key(key),
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      now(),
				})
			}

			if opts.AddRateLimitHeaders {
				h := w.Header()
				h.Set("X-RateLimit-Key", key)
				h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
				h.Set("X-RateLimit-Remaining", formatInt(max(dec.Remaining, 0)))
			}

			if !dec.Allowed {
				if opts.OnReject != nil {
					opts.OnReject(r, key, dec)
				}
				if dec.RetryAfter > 0 {
					w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				}
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.Header().Set("X-Content-Type-Options", "nosniff")
				w.WriteHeader(opts.RejectStatus)
				_, _ = w.Write([]byte(RejectBody))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
