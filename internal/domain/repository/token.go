package repository

import (
	"context"
	"time"
)

// RefreshToken representa un eslabón de la cadena de rotación.
// El valor crudo del token nunca se persiste, solo su hash.
type RefreshToken struct {
	ID        string
	AccountID string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// RevokedAt se setea en logout, rotación o reuse detection.
	// Un registro revocado nunca se borra mientras no expire: la cadena
	// de ReplacedByHash es la pista de auditoría.
	RevokedAt *time.Time
	// ReplacedByHash apunta al hash del token que lo reemplazó (rotación).
	ReplacedByHash *string
}

// Active indica si el registro puede autorizar un refresh.
func (t *RefreshToken) Active(now time.Time) bool {
	return t != nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// CreateRefreshTokenInput contiene los datos para crear un refresh token.
type CreateRefreshTokenInput struct {
	AccountID string
	TokenHash string
	TTL       time.Duration
}

// RefreshTokenRepository define operaciones sobre refresh tokens.
type RefreshTokenRepository interface {
	// Create crea un nuevo registro.
	Create(ctx context.Context, input CreateRefreshTokenInput) (*RefreshToken, error)

	// GetByHash busca un token por su hash. Retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// RevokeIfActive marca el token como revocado solo si todavía no lo
	// está (update condicional). Retorna false si otro flujo llegó
	// primero: el caller debe tratar ese caso como reuse.
	RevokeIfActive(ctx context.Context, tokenID string, replacedByHash *string) (bool, error)

	// RevokeAllByAccount revoca todos los tokens activos de una cuenta.
	// Retorna la cantidad revocada.
	RevokeAllByAccount(ctx context.Context, accountID string) (int, error)

	// DeleteExpired elimina registros vencidos (sweep). Retorna la cantidad.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
