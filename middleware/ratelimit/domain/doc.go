// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas. O algoritmo
// da janela deslizante (State.Admit / Evaluate) mora aqui para que todos os stores
// (arquivo, memória, Redis) compartilhem a mesma regra.
package domain
