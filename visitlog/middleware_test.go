package visitlog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"visitor-tracker/middleware/clientip"
	"visitor-tracker/session"
	"visitor-tracker/visitlog/application"
	"visitor-tracker/visitlog/domain"
)

type memLog struct {
	recs []domain.Record
	err  error
}

func (m *memLog) Append(_ context.Context, rec domain.Record) error {
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func TestMiddleware_RecordsVisitFromContext(t *testing.T) {
	log := &memLog{}
	now := time.Date(2024, 6, 1, 8, 0, 30, 0, time.UTC)
	called := false

	h := Middleware(Options{
		Service: application.Service{Log: log, Location: time.UTC},
		Now:     func() time.Time { return now },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "tester")
	r.Header.Set("Referer", "https://ref.example/")
	ctx := clientip.WithClientIP(r.Context(), "9.9.9.9")
	ctx = session.WithStart(ctx, now.Add(-30*time.Second))
	h.ServeHTTP(httptest.NewRecorder(), r.WithContext(ctx))

	if !called {
		t.Fatalf("expected next handler")
	}
	if len(log.recs) != 1 {
		t.Fatalf("expected one record, got %d", len(log.recs))
	}
	rec := log.recs[0]
	if rec.IPAddress != "9.9.9.9" || rec.UserAgent != "tester" || rec.ReferrerURL != "https://ref.example/" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.VisitDuration != 30 {
		t.Fatalf("expected duration 30, got %d", rec.VisitDuration)
	}
}

func TestMiddleware_AppendFailureReturns500(t *testing.T) {
	var reported error
	called := false
	h := Middleware(Options{
		Service: application.Service{Log: &memLog{err: errors.New("disk full")}},
		OnError: func(_ *http.Request, err error) { reported = err },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if w.Body.String() != ErrorBody {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
	if called || reported == nil {
		t.Fatalf("expected error reported and next not called")
	}
}

func TestMiddleware_ContinueOnError(t *testing.T) {
	called := false
	h := Middleware(Options{
		Service:         application.Service{Log: &memLog{err: errors.New("disk full")}},
		ContinueOnError: true,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Fatalf("expected next handler despite append failure")
	}
}
