package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"visitor-tracker/middleware/clientip"
)

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc("X-Client")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_UsesResolvedClientIP(t *testing.T) {
	fn := DefaultKeyFunc("")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r = r.WithContext(clientip.WithClientIP(r.Context(), "1.2.3.4"))

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected context ip, got %q", got)
	}
}

func TestDefaultKeyFunc_FallbacksToRemoteAddrHost(t *testing.T) {
	fn := DefaultKeyFunc("")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestDefaultKeyFunc_UnknownWhenNothingValid(t *testing.T) {
	fn := DefaultKeyFunc("")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = ""

	if got := fn(r); got != clientip.Unknown {
		t.Fatalf("expected %q, got %q", clientip.Unknown, got)
	}
}
