// Package infra contém os backends do log de visitas: arquivo JSON, lista Redis e postgres.
package infra

import "visitor-tracker/visitlog/domain"

var (
	_ domain.Log = (*FileLog)(nil)
	_ domain.Log = (*RedisLog)(nil)
	_ domain.Log = (*SQLLog)(nil)
)
