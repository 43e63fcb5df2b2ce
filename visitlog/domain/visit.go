package domain

import (
	"context"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"

	// DirectAccess é o referrer gravado quando a requisição não traz Referer.
	DirectAccess = "Direct Access"
	// UnknownIP é o endereço gravado quando o cliente não tem IP válido.
	UnknownIP = "UNKNOWN"
)

// Record é uma visita aceita, na ordem de campos do arquivo visitor.json.
type Record struct {
	IPAddress     string `json:"ip_address" db:"ip_address"`
	VisitDate     string `json:"visit_date" db:"visit_date"`
	VisitTime     string `json:"visit_time" db:"visit_time"`
	UserAgent     string `json:"user_agent" db:"user_agent"`
	ReferrerURL   string `json:"referrer_url" db:"referrer_url"`
	VisitDuration int64  `json:"visit_duration" db:"visit_duration"`
}

// NewRecord monta o registro com data e hora de at (já no fuso desejado).
// Campos texto devem chegar sanitizados.
func NewRecord(ip string, at time.Time, userAgent, referrer string, duration time.Duration) Record {
	secs := int64(duration / time.Second)
	if secs < 0 {
		secs = 0
	}
	return Record{
		IPAddress:     ip,
		VisitDate:     at.Format(DateLayout),
		VisitTime:     at.Format(TimeLayout),
		UserAgent:     userAgent,
		ReferrerURL:   referrer,
		VisitDuration: secs,
	}
}

// Appender acrescenta um registro ao final do log.
type Appender interface {
	Append(ctx context.Context, rec Record) error
}

// Reader lê o log inteiro em ordem de inserção.
type Reader interface {
	All(ctx context.Context) ([]Record, error)
}

// Log é o que os backends implementam.
type Log interface {
	Appender
	Reader
}

// Notifier avisa alguém sobre uma visita registrada.
type Notifier interface {
	Notify(ctx context.Context, rec Record) error
}
