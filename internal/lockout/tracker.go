// Package lockout implementa el tracker de intentos de login fallidos
// con bloqueo temporal por identificador.
//
// La máquina de estados por identificador es CLEAN → WARNING(1..4) → LOCKED.
// El contador vive en un backend compartido (Redis en producción) para que
// la cuenta sea correcta con múltiples instancias del servicio; el backend
// de memoria existe para desarrollo y tests.
package lockout

import (
	"context"
	"time"
)

const (
	// Threshold es la cantidad de fallos que dispara el bloqueo.
	Threshold = 5
	// LockWindow es la duración del bloqueo.
	LockWindow = 10 * time.Minute
	// IdleTTL expira contadores sin actividad para acotar almacenamiento.
	// Independiente del bloqueo.
	IdleTTL = time.Hour
)

// State es el resultado de registrar un fallo.
type State struct {
	Count      int
	Locked     bool
	RetryAfter time.Duration
	// JustLocked indica que este fallo fue el que cruzó el umbral.
	// El caller lo usa para emitir el evento CRITICAL una sola vez.
	JustLocked bool
}

// Status es el resultado de una consulta read-only.
type Status struct {
	Locked     bool
	RetryAfter time.Duration
}

// Limits parametriza un tracker desde la config. Los zero values caen
// en los defaults del paquete.
type Limits struct {
	Threshold  int
	LockWindow time.Duration
	IdleTTL    time.Duration
}

func (l Limits) normalized() Limits {
	if l.Threshold <= 0 {
		l.Threshold = Threshold
	}
	if l.LockWindow <= 0 {
		l.LockWindow = LockWindow
	}
	if l.IdleTTL <= 0 {
		l.IdleTTL = IdleTTL
	}
	return l
}

// Tracker cuenta fallos de autenticación por identificador.
type Tracker interface {
	// RecordFailure incrementa el contador de forma atómica (sin lost
	// updates bajo concurrencia) y estampa el bloqueo al cruzar el
	// umbral, solo si no hay un bloqueo ya activo.
	RecordFailure(ctx context.Context, identifier string) (State, error)

	// Status consulta el estado sin mutarlo.
	Status(ctx context.Context, identifier string) (Status, error)

	// Reset borra el registro. Solo después de una autenticación
	// completamente exitosa (password y segundo factor si aplica).
	Reset(ctx context.Context, identifier string) error
}

// RetryAfterMinutes redondea hacia arriba para el mensaje al usuario.
func RetryAfterMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}
