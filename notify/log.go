package notify

import (
	"context"

	"go.uber.org/zap"

	"visitor-tracker/internal/logger"
	"visitor-tracker/visitlog/domain"
)

// LogNotifier escreve o aviso no log em vez de enviar e-mail.
type LogNotifier struct {
	Log      *logger.Logger
	Template Template
}

func (n *LogNotifier) Notify(_ context.Context, rec domain.Record) error {
	msg := n.Template.Build(rec)
	n.Log.Info("visitor notification",
		zap.String("to", msg.To),
		zap.String("cc", msg.CC),
		zap.String("subject", msg.Subject),
		zap.String("ip", rec.IPAddress),
	)
	return nil
}
