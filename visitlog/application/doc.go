// Package application transforma uma requisição aceita em um domain.Record,
// grava no log configurado e dispara a notificação.
package application
