package application

import (
	"context"
	"fmt"
	"time"

	"visitor-tracker/middleware/clientip"
	"visitor-tracker/visitlog/domain"
)

// Visit é o que o adaptador HTTP sabe sobre uma requisição aceita.
type Visit struct {
	ClientIP     string
	UserAgent    string
	Referrer     string
	SessionStart time.Time
	At           time.Time
}

type Service struct {
	Log      domain.Appender
	Notifier domain.Notifier
	// Location define o fuso de visit_date/visit_time; nil usa time.Local.
	Location *time.Location
	Now      func() time.Time
	// OnNotifyError recebe falhas do notifier, que não interrompem o registro.
	OnNotifyError func(rec domain.Record, err error)
}

// Record sanitiza a visita, grava e, se gravou, notifica.
func (s Service) Record(ctx context.Context, v Visit) (domain.Record, error) {
	at := v.At
	if at.IsZero() {
		if s.Now != nil {
			at = s.Now()
		} else {
			at = time.Now()
		}
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}

	ip, ok := clientip.Validate(v.ClientIP)
	if !ok {
		ip = domain.UnknownIP
	}

	var duration time.Duration
	if !v.SessionStart.IsZero() {
		duration = at.Sub(v.SessionStart)
	}

	rec := domain.NewRecord(
		ip,
		at.In(loc),
		SanitizeUserAgent(v.UserAgent),
		SanitizeReferrer(v.Referrer),
		duration,
	)

	if s.Log != nil {
		if err := s.Log.Append(ctx, rec); err != nil {
			return rec, fmt.Errorf("append visit: %w", err)
		}
	}

	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, rec); err != nil && s.OnNotifyError != nil {
			s.OnNotifyError(rec, err)
		}
	}

	return rec, nil
}
