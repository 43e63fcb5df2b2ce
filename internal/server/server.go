// Package server monta os routers HTTP do visitortracker: o público, com a cadeia
// de rastreamento, e o de operação, com métricas e estatísticas do rate limiter.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"visitor-tracker/internal/logger"
	"visitor-tracker/internal/metrics"
	"visitor-tracker/middleware/clientip"
	"visitor-tracker/middleware/ratelimit"
	"visitor-tracker/middleware/ratelimit/domain"
	"visitor-tracker/middleware/ratelimit/infra"
	"visitor-tracker/notify"
	"visitor-tracker/session"
	"visitor-tracker/visitlog"
	visitdomain "visitor-tracker/visitlog/domain"
)

// RecordedBody é a resposta quando não há upstream configurado.
const RecordedBody = "visit recorded"

type Options struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	ClientIP clientip.Resolver
	Session  session.Options
	// RateLimit nil desliga o limite por janela.
	RateLimit   *ratelimit.Options
	Concurrency ratelimit.ConcurrencyOptions
	VisitLog    visitlog.Options

	// Upstream, se definido, recebe as visitas aceitas via reverse proxy.
	Upstream *url.URL
	// Stats alimenta /ratelimit/stats.
	Stats infra.StatsSnapshotter
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
}

// NewPublic devolve o router público:
// metrics → concurrency → clientip → session → ratelimit → visitlog → destino.
func NewPublic(o Options) http.Handler {
	o.defaults()
	log := o.Logger
	m := o.Metrics

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	conc := o.Concurrency
	conc.OnAcquire = chainFunc(conc.OnAcquire, m.IncConcurrencyAcquire)
	conc.OnRelease = chainFunc(conc.OnRelease, m.IncConcurrencyRelease)
	onConcReject := conc.OnReject
	conc.OnReject = func(req *http.Request) {
		m.IncConcurrencyRejected()
		log.Warn("concurrency limit reached", zap.String("path", req.URL.Path))
		if onConcReject != nil {
			onConcReject(req)
		}
	}

	sess := o.Session
	onSessErr := sess.OnError
	sess.OnError = func(req *http.Request, err error) {
		log.WithError(err).Error("session store failed")
		if onSessErr != nil {
			onSessErr(req, err)
		}
	}

	vl := o.VisitLog
	onVisitErr := vl.OnError
	vl.OnError = func(req *http.Request, err error) {
		m.IncVisitLogError()
		log.WithError(err).Error("visit log append failed", zap.String("ip", clientip.FromRequest(req)))
		if onVisitErr != nil {
			onVisitErr(req, err)
		}
	}
	onRecord := vl.OnRecord
	vl.OnRecord = func(req *http.Request, rec visitdomain.Record) {
		m.IncVisitRecorded()
		log.Debug("visit recorded", zap.String("ip", rec.IPAddress), zap.Int64("duration", rec.VisitDuration))
		if onRecord != nil {
			onRecord(req, rec)
		}
	}
	onNotifyErr := vl.Service.OnNotifyError
	vl.Service.OnNotifyError = func(rec visitdomain.Record, err error) {
		if errors.Is(err, notify.ErrThrottled) {
			m.IncNotification("throttled")
			log.Debug("notification throttled", zap.String("ip", rec.IPAddress))
		} else {
			m.IncNotification("failed")
			log.WithError(err).Warn("notification failed", zap.String("ip", rec.IPAddress))
		}
		if onNotifyErr != nil {
			onNotifyErr(rec, err)
		}
	}

	track := []func(http.Handler) http.Handler{
		ratelimit.ConcurrencyMiddleware(conc),
		o.ClientIP.Middleware,
		session.Middleware(sess),
	}
	if o.RateLimit != nil {
		track = append(track, ratelimit.Middleware(rateLimitOptions(*o.RateLimit, log, m)))
	}
	track = append(track, visitlog.Middleware(vl))

	r.With(track...).Handle("/*", destination(o.Upstream, log))
	return r
}

func rateLimitOptions(rl ratelimit.Options, log *logger.Logger, m *metrics.Metrics) ratelimit.Options {
	if rl.Stats == nil {
		rl.Stats = m
	} else {
		rl.Stats = infra.FanoutStats{m, rl.Stats}
	}
	onErr := rl.OnError
	rl.OnError = func(req *http.Request, key string, err error) {
		m.IncRateLimitStoreError()
		log.WithError(err).Error("rate limit store failed", zap.String("key", key))
		if onErr != nil {
			onErr(req, key, err)
		}
	}
	onReject := rl.OnReject
	rl.OnReject = func(req *http.Request, key string, dec domain.Decision) {
		log.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int("count", dec.Count),
			zap.Duration("retry_after", dec.RetryAfter),
		)
		if onReject != nil {
			onReject(req, key, dec)
		}
	}
	return rl
}

func destination(upstream *url.URL, log *logger.Logger) http.Handler {
	if upstream == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(RecordedBody))
		})
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).Error("proxy error", zap.String("upstream", upstream.String()))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy
}

const topDeniedLimit = 10

type statsResponse struct {
	infra.Counters
	TopDenied []infra.KeyCount `json:"top_denied,omitempty"`
}

// NewOps devolve o router de operação: /metrics e /ratelimit/stats.
func NewOps(o Options) http.Handler {
	o.defaults()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", o.Metrics.Handler())
	r.Get("/ratelimit/stats", func(w http.ResponseWriter, req *http.Request) {
		if o.Stats == nil {
			http.Error(w, "rate limit stats disabled", http.StatusNotFound)
			return
		}
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		c, err := o.Stats.Snapshot(ctx)
		if err != nil {
			o.Logger.WithError(err).Error("rate limit stats snapshot failed")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		resp := statsResponse{Counters: c}
		if rk, ok := o.Stats.(infra.DeniedRanker); ok {
			if resp.TopDenied, err = rk.TopDenied(ctx, topDeniedLimit); err != nil {
				o.Logger.WithError(err).Warn("rate limit top denied failed")
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return r
}

func chainFunc(a, b func()) func() {
	if a == nil {
		return b
	}
	return func() { a(); b() }
}
