package email

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
	"github.com/talentdock/authcore/internal/observability/logger"
)

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// NewSMTPSender crea un SMTPSender con TLS en modo auto.
func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, From: from, User: user, Pass: pass, TLSMode: "auto"}
}

// Send envía un email con cuerpo HTML y texto plano.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	log := logger.From(ctx).With(
		logger.Component("email.smtp"),
		logger.String("host", s.Host),
		logger.Int("port", s.Port),
	)
	log.Debug("sending email", logger.String("subject", msg.Subject))

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	// multipart/alternative (txt + html) cuando hay ambos
	if msg.TextBody != "" {
		m.SetBody("text/plain", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		if msg.TextBody == "" {
			m.SetBody("text/html", msg.HTMLBody)
		} else {
			m.AddAlternative("text/html", msg.HTMLBody)
		}
	}

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // solo dev
	}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default: // auto
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}

	if err := d.DialAndSend(m); err != nil {
		log.Warn("email send failed", logger.Err(err))
		return fmt.Errorf("email: send: %w", err)
	}
	return nil
}
