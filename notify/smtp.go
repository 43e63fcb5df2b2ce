package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"

	"visitor-tracker/visitlog/domain"
)

var ErrNoRecipient = errors.New("notify: recipient is required")

// SendFunc tem a assinatura de smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier envia o e-mail de aviso por um relay SMTP.
type SMTPNotifier struct {
	Addr     string
	Username string
	Password string
	Template Template
	Send     SendFunc
}

func (n *SMTPNotifier) Notify(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := n.Template.Build(rec)
	if msg.To == "" {
		return ErrNoRecipient
	}

	send := n.Send
	if send == nil {
		send = smtp.SendMail
	}

	var auth smtp.Auth
	if n.Username != "" {
		host, _, err := net.SplitHostPort(n.Addr)
		if err != nil {
			host = n.Addr
		}
		auth = smtp.PlainAuth("", n.Username, n.Password, host)
	}

	if err := send(n.Addr, auth, msg.From, msg.Recipients(), msg.Bytes()); err != nil {
		return fmt.Errorf("send mail via %s: %w", n.Addr, err)
	}
	return nil
}
