package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-email-verify/internal/config"
	mail "github.com/go-mail/mail"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// sendFunc dials and delivers one message.
type sendFunc func(d *mail.Dialer, m *mail.Message) error

type mailer struct {
	host     string
	port     int
	from     string
	username string
	password string
	tlsMode  string
	send     sendFunc
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		tlsMode:  cfg.SMTPTLSMode,
		send:     func(d *mail.Dialer, m *mail.Message) error { return d.DialAndSend(m) },
	}
}

// SendEmail delivers an HTML message. The SMTP dial timeout is taken from
// the context deadline when one is set.
func (m *mailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	if err := m.send(m.dialer(ctx), msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *mailer) dialer(ctx context.Context) *mail.Dialer {
	d := mail.NewDialer(m.host, m.port, m.username, m.password)
	d.TLSConfig = &tls.Config{ServerName: m.host}
	switch m.tlsMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 {
			d.Timeout = left
		}
	}
	return d
}
