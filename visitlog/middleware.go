// Package visitlog registra cada requisição aceita no log de visitas.
package visitlog

import (
	"net/http"
	"time"

	"visitor-tracker/middleware/clientip"
	"visitor-tracker/session"
	"visitor-tracker/visitlog/application"
	"visitor-tracker/visitlog/domain"
)

// ErrorBody é a resposta text/plain quando o registro falha.
const ErrorBody = "An error occurred. Please try again later."

type Options struct {
	Service application.Service
	// ContinueOnError deixa a requisição seguir mesmo se o registro falhar.
	ContinueOnError bool
	OnError         func(r *http.Request, err error)
	OnRecord        func(r *http.Request, rec domain.Record)
	Now             func() time.Time
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start, _ := session.StartFromContext(r.Context())

			rec, err := opts.Service.Record(r.Context(), application.Visit{
				ClientIP:     clientip.FromRequest(r),
				UserAgent:    r.UserAgent(),
				Referrer:     r.Referer(),
				SessionStart: start,
				At:           opts.Now(),
			})
			if err != nil {
				if opts.OnError != nil {
					opts.OnError(r, err)
				}
				if !opts.ContinueOnError {
					w.Header().Set("Content-Type", "text/plain; charset=utf-8")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(ErrorBody))
					return
				}
			} else if opts.OnRecord != nil {
				opts.OnRecord(r, rec)
			}

			next.ServeHTTP(w, r)
		})
	}
}
