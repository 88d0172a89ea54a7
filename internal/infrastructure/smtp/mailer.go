package smtp

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/campusswap/api/internal/config"
)

// Mailer delivers one-time codes. Callers treat delivery as fire-and-forget;
// a lost message is recovered by asking for a resend, never by retrying here.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type mailer struct {
	addr string
	from string
	auth smtp.Auth
}

func NewMailer(cfg *config.Config) Mailer {
	m := &mailer{
		addr: cfg.SMTPHost + ":" + cfg.SMTPPort,
		from: cfg.SMTPFrom,
	}
	if cfg.SMTPUsername != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return m
}

func (m *mailer) SendEmail(to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n\r\n", subject)
	msg.WriteString(body)
	return smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg.String()))
}
