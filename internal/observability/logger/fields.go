package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar para que los logs sean consistentes entre capas.

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field { return zap.String("method", v) }

// Path crea un campo para el path del request.
func Path(v string) zap.Field { return zap.String("path", v) }

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field { return zap.Int("status", v) }

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// UserAgent crea un campo para el User-Agent.
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// AccountID crea un campo para el ID de la cuenta.
func AccountID(v string) zap.Field { return zap.String("account_id", v) }

// Identifier crea un campo para el identificador de login (email normalizado).
// Cuidado en prod: es PII.
func Identifier(v string) zap.Field { return zap.String("identifier", v) }

// Role crea un campo para el rol declarado/almacenado.
func Role(v string) zap.Field { return zap.String("role", v) }

// Purpose crea un campo para el propósito de un one-time code.
func Purpose(v string) zap.Field { return zap.String("purpose", v) }

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field { return zap.String("component", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field { return zap.String("layer", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// Count crea un campo para un conteo.
func Count(v int) zap.Field { return zap.Int("count", v) }

// String crea un campo string genérico.
func String(key, v string) zap.Field { return zap.String(key, v) }

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field { return zap.Int(key, v) }

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
