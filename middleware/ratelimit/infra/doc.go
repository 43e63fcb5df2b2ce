// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - FileStore: janela deslizante persistida em um arquivo JSON com lock exclusivo
//   - MemoryStore: a mesma janela em memória, com janitor
//   - RedisStore: janela em sorted set, atualizada por script Lua (atômico)
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore / FanoutStats: estatísticas de decisões
package infra
