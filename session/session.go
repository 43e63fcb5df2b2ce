// Package session identifica visitantes por cookie e guarda o instante de início
// de cada sessão, usado para calcular a duração da visita.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const DefaultCookieName = "VTSESSID"

// Store devolve o início já registrado para id ou registra now (semântica SETNX).
type Store interface {
	Touch(ctx context.Context, id string, now time.Time) (time.Time, error)
}

type startKey struct{}

// WithStart guarda o início da sessão no contexto.
func WithStart(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, startKey{}, start)
}

// StartFromContext devolve o início da sessão, se conhecido.
func StartFromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startKey{}).(time.Time)
	return t, ok && !t.IsZero()
}

type Options struct {
	Store      Store
	CookieName string
	// TTL define o Max-Age do cookie; 0 gera cookie de sessão do navegador.
	TTL     time.Duration
	Secure  bool
	OnError func(r *http.Request, err error)
	Now     func() time.Time
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(opts.CookieName); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
			}

			cookie := &http.Cookie{
				Name:     opts.CookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			}
			if opts.TTL > 0 {
				cookie.MaxAge = int(opts.TTL / time.Second)
			}
			http.SetCookie(w, cookie)

			if opts.Store != nil {
				start, err := opts.Store.Touch(r.Context(), id, opts.Now())
				if err != nil {
					if opts.OnError != nil {
						opts.OnError(r, err)
					}
				} else {
					r = r.WithContext(WithStart(r.Context(), start))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
