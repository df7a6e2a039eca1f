package repository

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role es el rol de una cuenta. Opaco para el core de auth: solo se usa
// para validar que el login declare el rol correcto.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// ParseRole normaliza y valida un rol declarado.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCandidate:
		return RoleCandidate, nil
	case RoleRecruiter:
		return RoleRecruiter, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

// CodePurpose indica el propósito de un one-time code.
type CodePurpose string

const (
	CodeEmailVerification CodePurpose = "email_verification"
	CodeLoginSecondFactor CodePurpose = "login_2fa"
	CodePasswordReset     CodePurpose = "password_reset"
)

// OneTimeCode es el código transitorio unificado (verificación de email,
// 2FA por email, password reset). Se guarda solo el hash del código.
type OneTimeCode struct {
	Purpose   CodePurpose
	Hash      string
	ExpiresAt time.Time
}

// Expired indica si el código ya venció.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return c == nil || now.After(c.ExpiresAt)
}

// PasswordHistoryLimit es la cantidad máxima de hashes previos retenidos.
const PasswordHistoryLimit = 5

// Account representa la identidad durable de un usuario.
type Account struct {
	ID          string
	Email       string // único, case-normalizado
	Role        Role
	DisplayName string

	PasswordHash      string // argon2id PHC, nunca plaintext
	PasswordChangedAt time.Time
	PasswordExpiresAt *time.Time
	// PasswordHistory guarda hashes que alguna vez fueron el hash vivo,
	// más reciente primero, máximo PasswordHistoryLimit entradas.
	PasswordHistory []string

	TwoFactorEnabled bool
	// TOTPSecret en base32. Vacío = modo código por email.
	TOTPSecret string

	EmailVerified bool
	OneTimeCode   *OneTimeCode

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PushPasswordHistory agrega el hash saliente al frente del historial y
// trunca a PasswordHistoryLimit. Debe llamarse con el hash que está por
// ser reemplazado, antes de pisar PasswordHash: el historial solo
// contiene hashes que alguna vez estuvieron vivos.
func (a *Account) PushPasswordHistory(outgoingHash string) {
	if outgoingHash == "" {
		return
	}
	hist := make([]string, 0, len(a.PasswordHistory)+1)
	hist = append(hist, outgoingHash)
	hist = append(hist, a.PasswordHistory...)
	if len(hist) > PasswordHistoryLimit {
		hist = hist[:PasswordHistoryLimit]
	}
	a.PasswordHistory = hist
}

// CreateAccountInput contiene los datos para crear una cuenta.
type CreateAccountInput struct {
	Email        string
	Role         Role
	DisplayName  string
	PasswordHash string
	// PasswordTTL fija PasswordExpiresAt = now + TTL. Cero = sin expiración
	// explícita (aplica el fallback de 90 días del policy engine).
	PasswordTTL time.Duration
}

// UpdatePasswordInput contiene la rotación completa de credencial.
// Se aplica como una sola escritura para que historial y hash vivo
// no puedan divergir ante fallas parciales.
type UpdatePasswordInput struct {
	NewHash   string
	History   []string
	ChangedAt time.Time
	ExpiresAt *time.Time
}

// AccountRepository define operaciones sobre cuentas.
type AccountRepository interface {
	// GetByEmail busca una cuenta por email. Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByID busca una cuenta por ID. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, accountID string) (*Account, error)

	// Create crea una cuenta nueva. Retorna ErrConflict si el email ya existe.
	Create(ctx context.Context, input CreateAccountInput) (*Account, error)

	// UpdatePassword reemplaza hash vivo + historial + timestamps en una
	// sola operación.
	UpdatePassword(ctx context.Context, accountID string, input UpdatePasswordInput) error

	// SetEmailVerified marca el email como verificado o no.
	SetEmailVerified(ctx context.Context, accountID string, verified bool) error

	// SetOneTimeCode guarda el one-time code vigente. nil limpia el código.
	SetOneTimeCode(ctx context.Context, accountID string, code *OneTimeCode) error

	// SetTwoFactor configura el segundo factor. secret vacío = modo email.
	SetTwoFactor(ctx context.Context, accountID string, enabled bool, totpSecret string) error

	// DeleteExpiredCodes limpia one-time codes vencidos (sweep).
	// Retorna la cantidad limpiada.
	DeleteExpiredCodes(ctx context.Context, now time.Time) (int, error)
}
