package auth

import (
	"errors"
	"fmt"

	"github.com/talentdock/authcore/internal/security/password"
)

// FailureKind clasifica el resultado tipado de un flujo de autenticación.
type FailureKind string

const (
	// KindValidation: input malformado. Sin efectos secundarios.
	KindValidation FailureKind = "validation"
	// KindNotFound: la cuenta o el registro no existe.
	KindNotFound FailureKind = "not_found"
	// KindConflict: el recurso ya existe (email tomado en el registro).
	KindConflict FailureKind = "conflict"
	// KindPolicyViolation: el password no cumple las reglas o fue reusado.
	KindPolicyViolation FailureKind = "policy_violation"
	// KindAuthorizationMismatch: rol declarado no coincide, o email sin
	// verificar. No es un fallo de credenciales.
	KindAuthorizationMismatch FailureKind = "authorization_mismatch"
	// KindInvalidCredentials: password o código incorrecto. Mensaje
	// deliberadamente genérico.
	KindInvalidCredentials FailureKind = "invalid_credentials"
	// KindRateLimited: bloqueo por fuerza bruta activo.
	KindRateLimited FailureKind = "rate_limited"
	// KindSecurityAlert: reuso de refresh token detectado. Siempre se
	// registra como CRITICAL y fuerza re-login total.
	KindSecurityAlert FailureKind = "security_alert"
	// KindTransient: store o email caídos. Reintentar el flujo completo.
	KindTransient FailureKind = "transient"
)

// Códigos máquina-legibles para que el transporte distinga sub-casos
// dentro del mismo kind (p.ej. email sin verificar vs. rol incorrecto).
const (
	CodeEmailNotVerified = "email_not_verified"
	CodeRoleMismatch     = "role_mismatch"
	CodeLocked           = "locked"
	CodeEmailTaken       = "email_taken"
)

// FlowError es el resultado tipado de fallo de cualquier flujo.
type FlowError struct {
	Kind    FailureKind
	Code    string // opcional, sub-caso dentro del kind
	Message string
	// Violations lista todas las reglas de policy incumplidas, no solo
	// la primera.
	Violations []password.Violation
	// RetryAfterMinutes acompaña a KindRateLimited.
	RetryAfterMinutes int
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("auth: %s: %s", e.Kind, e.Message)
}

// AsFlow extrae el *FlowError de una cadena de errores, si lo hay.
func AsFlow(err error) (*FlowError, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ─── Constructores ───

func failValidation(msg string) *FlowError {
	return &FlowError{Kind: KindValidation, Message: msg}
}

func failNotFound(msg string) *FlowError {
	return &FlowError{Kind: KindNotFound, Message: msg}
}

func failConflict(code, msg string) *FlowError {
	return &FlowError{Kind: KindConflict, Code: code, Message: msg}
}

func failAuthorization(code, msg string) *FlowError {
	return &FlowError{Kind: KindAuthorizationMismatch, Code: code, Message: msg}
}

func failCredentials(msg string) *FlowError {
	return &FlowError{Kind: KindInvalidCredentials, Message: msg}
}

func failLocked(retryAfterMinutes int) *FlowError {
	return &FlowError{
		Kind:              KindRateLimited,
		Code:              CodeLocked,
		Message:           fmt.Sprintf("cuenta bloqueada temporalmente, reintentá en %d minutos", retryAfterMinutes),
		RetryAfterMinutes: retryAfterMinutes,
	}
}

func failPolicy(violations []password.Violation) *FlowError {
	return &FlowError{
		Kind:       KindPolicyViolation,
		Message:    "el password no cumple la política",
		Violations: violations,
	}
}

func failTransient(msg string) *FlowError {
	return &FlowError{Kind: KindTransient, Message: msg}
}
