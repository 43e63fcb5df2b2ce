// Package notify envia avisos de novas visitas.
package notify

import (
	"fmt"
	"strings"

	"visitor-tracker/visitlog/domain"
)

// Message é um e-mail em texto simples.
type Message struct {
	From    string
	To      string
	CC      string
	Subject string
	Body    string
}

// Recipients devolve To e, se houver, CC (envelope RCPT TO).
func (m Message) Recipients() []string {
	out := []string{m.To}
	if m.CC != "" {
		out = append(out, m.CC)
	}
	return out
}

// Bytes monta o e-mail no formato RFC 5322 com CRLF.
func (m Message) Bytes() []byte {
	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(stripCRLF(v))
		b.WriteString("\r\n")
	}
	header("From", m.From)
	header("To", m.To)
	if m.CC != "" {
		header("CC", m.CC)
	}
	header("Subject", m.Subject)
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func stripCRLF(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// Template gera uma Message para cada visita.
type Template struct {
	From      string
	To        string
	CCEnabled bool
	CC        string
	Subject   string
	Body      string
	// IncludeDetails acrescenta os campos do registro ao corpo.
	IncludeDetails bool
}

func (t Template) Build(rec domain.Record) Message {
	msg := Message{
		From:    t.From,
		To:      t.To,
		Subject: t.Subject,
		Body:    t.Body,
	}
	if t.CCEnabled && strings.TrimSpace(t.CC) != "" {
		msg.CC = strings.TrimSpace(t.CC)
	}
	if t.IncludeDetails {
		msg.Body += "\n\n" + details(rec)
	}
	return msg
}

func details(rec domain.Record) string {
	return fmt.Sprintf("IP: %s\nDate: %s %s\nUser agent: %s\nReferrer: %s\nDuration: %ds",
		rec.IPAddress, rec.VisitDate, rec.VisitTime, rec.UserAgent, rec.ReferrerURL, rec.VisitDuration)
}
