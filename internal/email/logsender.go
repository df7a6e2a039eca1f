package email

import (
	"context"

	"github.com/talentdock/authcore/internal/observability/logger"
)

// LogSender escribe el mail al log en vez de enviarlo. Sólo para dev:
// los códigos quedan visibles en la consola.
type LogSender struct{}

func NewLogSender() *LogSender { return &LogSender{} }

func (s *LogSender) Send(ctx context.Context, m Message) error {
	logger.From(ctx).Info("email (no enviado, SMTP sin configurar)",
		logger.String("to", m.To),
		logger.String("subject", m.Subject),
		logger.String("body", m.TextBody),
	)
	return nil
}
