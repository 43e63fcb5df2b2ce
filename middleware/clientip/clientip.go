// Package clientip resolve o identificador do cliente (IP) a partir das dicas da requisição.
//
// A ordem padrão olha primeiro os headers declarados pelo cliente, depois as variantes
// de forwarded-for e por último o endereço do peer TCP. Headers declarados pelo cliente
// podem ser forjados; para não confiar neles, configure Sources com apenas SourceRemoteAddr.
package clientip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Unknown é o identificador usado quando nenhuma fonte tem um IP válido.
const Unknown = "UNKNOWN"

// Source é um header HTTP ou o endereço do peer (SourceRemoteAddr).
type Source string

const (
	SourceClientIP      Source = "Client-IP"
	SourceXForwardedFor Source = "X-Forwarded-For"
	SourceXForwarded    Source = "X-Forwarded"
	SourceForwardedFor  Source = "Forwarded-For"
	SourceForwarded     Source = "Forwarded"
	SourceRemoteAddr    Source = "remote-addr"
)

// DefaultSources é a precedência padrão.
var DefaultSources = []Source{
	SourceClientIP,
	SourceXForwardedFor,
	SourceXForwarded,
	SourceForwardedFor,
	SourceForwarded,
	SourceRemoteAddr,
}

type Resolver struct {
	Sources []Source
}

// Resolve devolve o primeiro valor que é um IPv4/IPv6 válido, ou Unknown.
func (rs Resolver) Resolve(r *http.Request) string {
	sources := rs.Sources
	if len(sources) == 0 {
		sources = DefaultSources
	}

	for _, src := range sources {
		raw := rawValue(r, src)
		if raw == "" {
			continue
		}
		if ip, ok := Validate(candidate(src, raw)); ok {
			return ip
		}
	}
	return Unknown
}

// Resolve usa a precedência padrão.
func Resolve(r *http.Request) string {
	return Resolver{}.Resolve(r)
}

func rawValue(r *http.Request, src Source) string {
	if src == SourceRemoteAddr {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(r.Header.Get(string(src)))
}

// candidate extrai o endereço do valor bruto de uma fonte.
func candidate(src Source, raw string) string {
	if src == SourceRemoteAddr {
		if host, _, err := net.SplitHostPort(raw); err == nil {
			return host
		}
		return raw
	}

	// listas: o primeiro elemento é o cliente original
	first := strings.TrimSpace(strings.Split(raw, ",")[0])

	if src == SourceForwarded || strings.Contains(strings.ToLower(first), "for=") {
		return forwardedFor(first)
	}
	return first
}

// forwardedFor lê o parâmetro for= de um elemento do header Forwarded (RFC 7239).
func forwardedFor(elem string) string {
	for _, pair := range strings.Split(elem, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "for") {
			continue
		}
		v = strings.Trim(strings.TrimSpace(v), `"`)
		// [2001:db8::1]:4711
		if strings.HasPrefix(v, "[") {
			if end := strings.Index(v, "]"); end > 0 {
				return v[1:end]
			}
		}
		return v
	}
	return ""
}

// Validate confere se s é um IPv4/IPv6 bem formado (sem zona). Aceita "ip:porta".
func Validate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if addr, err := netip.ParseAddr(s); err == nil && addr.Zone() == "" {
		return s, true
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		if addr, err := netip.ParseAddr(host); err == nil && addr.Zone() == "" {
			return host, true
		}
	}
	return "", false
}

type clientIPKey struct{}

// Middleware resolve o IP uma vez e guarda no context da requisição.
func (rs Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithClientIP(r.Context(), rs.Resolve(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// FromContext devolve o IP guardado por Middleware ("" se ausente).
func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// FromRequest usa o valor do context e, se não houver, resolve com a precedência padrão.
func FromRequest(r *http.Request) string {
	if ip := FromContext(r.Context()); ip != "" {
		return ip
	}
	return Resolve(r)
}

// ParseSources converte nomes de configuração em Sources. Nomes vazios são ignorados.
func ParseSources(names []string) []Source {
	out := make([]Source, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if strings.EqualFold(n, string(SourceRemoteAddr)) {
			out = append(out, SourceRemoteAddr)
			continue
		}
		out = append(out, Source(http.CanonicalHeaderKey(n)))
	}
	return out
}
