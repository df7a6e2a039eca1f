// Package audit define el puerto de activity-logging del core.
//
// El core depende de la interfaz Logger; el sink concreto (consola,
// archivo, store) lo cablea la aplicación. Las fallas del sink se tragan
// en el boundary: un log de actividad nunca puede abortar un flujo de
// autenticación.
package audit

import (
	"context"

	"github.com/talentdock/authcore/internal/observability/logger"
	"go.uber.org/zap"
)

// Severity del evento.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityCritical Severity = "CRITICAL"
)

// Entry es un evento de actividad.
type Entry struct {
	Action        string // "login", "login_failed", "lockout", "token_reuse", ...
	Status        string // "success" | "failure"
	Severity      Severity
	AccountID     string
	Identifier    string
	IP            string
	UserAgent     string
	CorrelationID string
	Metadata      map[string]any
}

// Logger es el sink de actividad.
type Logger interface {
	Log(ctx context.Context, e Entry)
}

// Emit envía el evento protegiendo al caller: nil-safe y a prueba de
// panics del sink.
func Emit(ctx context.Context, l Logger, e Entry) {
	if l == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.From(ctx).Warn("audit sink panicked", logger.Any("panic", r))
		}
	}()
	l.Log(ctx, e)
}

// ZapSink escribe eventos como logs estructurados.
type ZapSink struct{}

// NewZapSink crea el sink por defecto.
func NewZapSink() *ZapSink { return &ZapSink{} }

func (s *ZapSink) Log(ctx context.Context, e Entry) {
	l := logger.From(ctx).Named("audit")
	fields := []zap.Field{
		logger.String("action", e.Action),
		logger.String("status", e.Status),
		logger.String("severity", string(e.Severity)),
	}
	if e.AccountID != "" {
		fields = append(fields, logger.AccountID(e.AccountID))
	}
	if e.Identifier != "" {
		fields = append(fields, logger.Identifier(e.Identifier))
	}
	if e.IP != "" {
		fields = append(fields, logger.ClientIP(e.IP))
	}
	if e.UserAgent != "" {
		fields = append(fields, logger.UserAgent(e.UserAgent))
	}
	if e.CorrelationID != "" {
		fields = append(fields, logger.RequestID(e.CorrelationID))
	}
	if len(e.Metadata) > 0 {
		fields = append(fields, logger.Any("metadata", e.Metadata))
	}
	switch e.Severity {
	case SeverityCritical:
		l.Error("security event", fields...)
	case SeverityWarn:
		l.Warn("security event", fields...)
	default:
		l.Info("activity", fields...)
	}
}

// Nop descarta todos los eventos. Para tests.
type Nop struct{}

func (Nop) Log(context.Context, Entry) {}
