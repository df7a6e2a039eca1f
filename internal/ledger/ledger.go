// Package ledger implementa la cadena de rotación de refresh tokens con
// detección de reuso.
//
// Estados por registro: ACTIVE → ROTATED (revocado, con reemplazo),
// ACTIVE → REVOKED_TERMINAL (logout / reuse), ACTIVE → EXPIRED (pasivo).
// Los registros revocados no se borran mientras no expiren: la cadena de
// ReplacedByHash queda como pista de auditoría y es lo que permite
// detectar replay de un token robado.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/talentdock/authcore/internal/audit"
	"github.com/talentdock/authcore/internal/domain/repository"
	jwtx "github.com/talentdock/authcore/internal/jwt"
	"github.com/talentdock/authcore/internal/metrics"
	"github.com/talentdock/authcore/internal/observability/logger"
	tokens "github.com/talentdock/authcore/internal/security/token"
)

// DefaultTTL es la vida de un refresh token, alineada con la cookie.
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrInvalidToken: el crudo no pasa la verificación de firma.
	ErrInvalidToken = errors.New("ledger: invalid refresh token")
	// ErrTokenNotFound: el hash no registra, o el registro expiró, o se
	// perdió la carrera de rotación. El caller no distingue los casos.
	ErrTokenNotFound = errors.New("ledger: refresh token not found")
	// ErrReuseDetected: se presentó un token ya revocado. La cadena
	// entera de la cuenta queda revocada.
	ErrReuseDetected = errors.New("ledger: refresh token reuse detected")
)

// Deps contiene las dependencias del ledger.
type Deps struct {
	Tokens repository.RefreshTokenRepository
	Issuer *jwtx.Issuer
	TTL    time.Duration
	Audit  audit.Logger
	Now    func() time.Time // nil = time.Now
}

// Ledger es el libro mayor de refresh tokens.
type Ledger struct {
	deps Deps
}

// New crea un ledger.
func New(deps Deps) *Ledger {
	if deps.TTL <= 0 {
		deps.TTL = DefaultTTL
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Ledger{deps: deps}
}

// Issue genera un refresh token nuevo para la cuenta. El crudo va al
// caller (cookie); solo su hash se persiste.
func (l *Ledger) Issue(ctx context.Context, accountID string) (string, *repository.RefreshToken, error) {
	now := l.deps.Now().UTC()
	raw, err := l.deps.Issuer.SignRefresh(accountID, uuid.NewString(), l.deps.TTL, now)
	if err != nil {
		return "", nil, fmt.Errorf("ledger: sign refresh: %w", err)
	}
	rec, err := l.deps.Tokens.Create(ctx, repository.CreateRefreshTokenInput{
		AccountID: accountID,
		TokenHash: tokens.SHA256Base64URL(raw),
		TTL:       l.deps.TTL,
	})
	if err != nil {
		return "", nil, fmt.Errorf("ledger: persist refresh: %w", err)
	}
	return raw, rec, nil
}

// Rotation es el resultado de una rotación exitosa.
type Rotation struct {
	AccountID string
	// RawRefresh es el crudo del token nuevo.
	RawRefresh string
	// Record es el registro nuevo.
	Record *repository.RefreshToken
}

// VerifyAndRotate valida el crudo presentado y rota la cadena:
//
//  1. firma inválida → ErrInvalidToken
//  2. hash sin registro (o registro expirado) → ErrTokenNotFound
//  3. registro ya revocado → reuse: revoca toda la cadena de la cuenta
//     y retorna ErrReuseDetected
//  4. si no: revoca el registro viejo con update condicional y crea el
//     nuevo; el perdedor de dos rotaciones concurrentes ve ErrTokenNotFound.
//
// La emisión del access token es del caller; acá solo vive la cadena.
func (l *Ledger) VerifyAndRotate(ctx context.Context, raw string) (*Rotation, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("ledger"), logger.Op("VerifyAndRotate"))
	now := l.deps.Now().UTC()

	accountID, err := l.deps.Issuer.ParseRefresh(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}

	rec, err := l.deps.Tokens.GetByHash(ctx, tokens.SHA256Base64URL(raw))
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("refresh token not found")
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("ledger: lookup: %w", err)
	}

	if rec.RevokedAt != nil {
		return nil, l.reuse(ctx, rec, accountID)
	}
	if !now.Before(rec.ExpiresAt) {
		log.Debug("refresh token expired")
		return nil, ErrTokenNotFound
	}

	// El token embebe el dueño; el registro manda. Divergencia = forja.
	if rec.AccountID != accountID {
		log.Warn("refresh token account mismatch", logger.AccountID(accountID))
		return nil, ErrInvalidToken
	}

	// Rotación: primero ganar el update condicional, después persistir el
	// reemplazo. Generamos el crudo nuevo antes para poder dejar el
	// puntero de reemplazo en la misma escritura condicional.
	newRaw, err := l.deps.Issuer.SignRefresh(accountID, uuid.NewString(), l.deps.TTL, now)
	if err != nil {
		return nil, fmt.Errorf("ledger: sign refresh: %w", err)
	}
	newHash := tokens.SHA256Base64URL(newRaw)

	won, err := l.deps.Tokens.RevokeIfActive(ctx, rec.ID, &newHash)
	if err != nil {
		return nil, fmt.Errorf("ledger: revoke old: %w", err)
	}
	if !won {
		// Otro request rotó primero con este mismo token.
		log.Debug("lost rotation race")
		return nil, ErrTokenNotFound
	}

	newRec, err := l.deps.Tokens.Create(ctx, repository.CreateRefreshTokenInput{
		AccountID: accountID,
		TokenHash: newHash,
		TTL:       l.deps.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: persist refresh: %w", err)
	}

	metrics.TokenRotations.Inc()
	return &Rotation{AccountID: accountID, RawRefresh: newRaw, Record: newRec}, nil
}

// reuse mata la cadena completa de la cuenta y deja el evento CRITICAL.
func (l *Ledger) reuse(ctx context.Context, rec *repository.RefreshToken, accountID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("ledger"))

	n, err := l.deps.Tokens.RevokeAllByAccount(ctx, rec.AccountID)
	if err != nil {
		log.Error("chain kill failed", logger.Err(err), logger.AccountID(rec.AccountID))
	}

	metrics.TokenReuseDetected.Inc()
	log.Error("refresh token reuse detected",
		logger.AccountID(rec.AccountID),
		logger.Count(n),
	)
	audit.Emit(ctx, l.deps.Audit, audit.Entry{
		Action:    "token_reuse",
		Status:    "failure",
		Severity:  audit.SeverityCritical,
		AccountID: rec.AccountID,
		Metadata:  map[string]any{"revoked": n, "presented_by": accountID},
	})
	return ErrReuseDetected
}

// RevokeOne revoca el registro del crudo presentado (logout de una
// sesión). Idempotente: un token ya revocado o desconocido no es error.
func (l *Ledger) RevokeOne(ctx context.Context, raw string) error {
	if _, err := l.deps.Issuer.ParseRefresh(raw); err != nil {
		return ErrInvalidToken
	}
	rec, err := l.deps.Tokens.GetByHash(ctx, tokens.SHA256Base64URL(raw))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	_, err = l.deps.Tokens.RevokeIfActive(ctx, rec.ID, nil)
	return err
}

// RevokeAll revoca todos los tokens activos de la cuenta (cambio/reset
// de password, actividad sospechosa).
func (l *Ledger) RevokeAll(ctx context.Context, accountID string) (int, error) {
	return l.deps.Tokens.RevokeAllByAccount(ctx, accountID)
}
