package notify

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"visitor-tracker/visitlog/domain"
)

// ErrThrottled indica que o aviso foi descartado pelo limite de envios.
var ErrThrottled = errors.New("notify: throttled")

// Throttled limita quantos avisos por minuto chegam ao notifier interno.
type Throttled struct {
	next    domain.Notifier
	limiter *rate.Limiter
}

// NewThrottled permite até perMinute avisos por minuto (bucket cheio no início).
// perMinute <= 0 desliga o limite.
func NewThrottled(next domain.Notifier, perMinute int) *Throttled {
	t := &Throttled{next: next}
	if perMinute > 0 {
		t.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return t
}

func (t *Throttled) Notify(ctx context.Context, rec domain.Record) error {
	if t.limiter != nil && !t.limiter.Allow() {
		return ErrThrottled
	}
	return t.next.Notify(ctx, rec)
}
