package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"visitor-tracker/middleware/ratelimit/domain"
)

func TestNew_RegistryServesCollectors(t *testing.T) {
	m := New()
	m.IncVisitRecorded()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"visits_recorded_total", "visit_log_errors_total", "concurrency_inflight", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q not found in /metrics output", name)
		}
	}
}

func TestRecord_CountsDecisions(t *testing.T) {
	m := New()
	ctx := context.Background()
	_ = m.Record(ctx, domain.StatsEvent{Allowed: true})
	_ = m.Record(ctx, domain.StatsEvent{Allowed: true})
	_ = m.Record(ctx, domain.StatsEvent{Allowed: false})

	if got := testutil.ToFloat64(m.ratelimitDecisions.WithLabelValues("allowed")); got != 2 {
		t.Fatalf("allowed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ratelimitDecisions.WithLabelValues("denied")); got != 1 {
		t.Fatalf("denied = %v, want 1", got)
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, p := range []string{"/items/1", "/items/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(m.reqTotal.WithLabelValues("GET", "/items/{id}", "418")); got != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}
}

func TestConcurrencyGauge(t *testing.T) {
	m := New()
	m.IncConcurrencyAcquire()
	m.IncConcurrencyAcquire()
	m.IncConcurrencyRelease()
	m.IncConcurrencyRejected()

	if got := testutil.ToFloat64(m.concurrencyInflight); got != 1 {
		t.Fatalf("inflight = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.concurrencyRejected); got != 1 {
		t.Fatalf("rejected = %v, want 1", got)
	}
}

func TestIncNotification(t *testing.T) {
	m := New()
	m.IncNotification("sent")
	m.IncNotification("throttled")
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("throttled")); got != 1 {
		t.Fatalf("throttled = %v, want 1", got)
	}
}
