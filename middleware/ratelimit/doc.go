// Package ratelimit fornece adapters HTTP (net/http) para rate limit por janela
// deslizante e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e o algoritmo da janela (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: stores concretos (arquivo JSON, memória, Redis), semáforo, estatísticas
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no tracker:
//
//  1. Extrai a chave do cliente (header configurado ou IP resolvido pelo clientip)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 text/plain (rate limit) ou 503 (concorrência)
//  4. Se permitido, chama o próximo handler (registro da visita)
package ratelimit
