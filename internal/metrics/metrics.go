package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visitor-tracker/middleware/ratelimit/domain"
)

type Metrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	reqTotal *prometheus.CounterVec
	reqDur   *prometheus.HistogramVec

	ratelimitDecisions   *prometheus.CounterVec
	ratelimitStoreErrors prometheus.Counter

	visitsRecorded prometheus.Counter
	visitLogErrors prometheus.Counter
	notifications  *prometheus.CounterVec

	concurrencyInflight prometheus.Gauge
	concurrencyRejected prometheus.Counter
}

// New cria um registry próprio com os coletores de Go/processo e as métricas do tracker.
// Labels de rota usam o padrão do chi, nunca o path cru.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		ratelimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Sliding-window decisions by result (allowed, denied)",
		}, []string{"result"}),
		ratelimitStoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratelimit_store_errors_total",
			Help: "Rate-limit store failures (request admitted unless fail-closed)",
		}),
		visitsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "visits_recorded_total",
			Help: "Visits appended to the visit log",
		}),
		visitLogErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "visit_log_errors_total",
			Help: "Visit log append failures",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Visitor notifications by result (sent, failed, throttled)",
		}, []string{"result"}),
		concurrencyInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "concurrency_inflight",
			Help: "Requests currently holding a concurrency slot",
		}),
		concurrencyRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "concurrency_rejected_total",
			Help: "Requests rejected because no concurrency slot was available",
		}),
	}
	reg.MustRegister(
		m.reqTotal,
		m.reqDur,
		m.ratelimitDecisions,
		m.ratelimitStoreErrors,
		m.visitsRecorded,
		m.visitLogErrors,
		m.notifications,
		m.concurrencyInflight,
		m.concurrencyRejected,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	m.reg = reg
	return m
}

func (m *Metrics) Handler() http.Handler { return m.handler }

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) IncRateLimitStoreError() { m.ratelimitStoreErrors.Inc() }
func (m *Metrics) IncVisitRecorded()       { m.visitsRecorded.Inc() }
func (m *Metrics) IncVisitLogError()       { m.visitLogErrors.Inc() }
func (m *Metrics) IncConcurrencyAcquire()  { m.concurrencyInflight.Inc() }
func (m *Metrics) IncConcurrencyRelease()  { m.concurrencyInflight.Dec() }
func (m *Metrics) IncConcurrencyRejected() { m.concurrencyRejected.Inc() }

// IncNotification conta um aviso; result é "sent", "failed" ou "throttled".
func (m *Metrics) IncNotification(result string) {
	m.notifications.WithLabelValues(result).Inc()
}

// Record implementa domain.StatsStore contando decisões do rate limiter.
func (m *Metrics) Record(_ context.Context, ev domain.StatsEvent) error {
	result := "denied"
	if ev.Allowed {
		result = "allowed"
	}
	m.ratelimitDecisions.WithLabelValues(result).Inc()
	return nil
}

var _ domain.StatsStore = (*Metrics)(nil)
