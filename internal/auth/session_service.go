package auth

import (
	"context"
	"errors"

	"github.com/talentdock/authcore/internal/audit"
	"github.com/talentdock/authcore/internal/domain/repository"
	jwtx "github.com/talentdock/authcore/internal/jwt"
	"github.com/talentdock/authcore/internal/ledger"
	"github.com/talentdock/authcore/internal/observability/logger"
)

type sessionService struct {
	deps Deps
}

// NewSessionService crea el servicio de sesiones.
func NewSessionService(deps Deps) SessionService {
	deps.normalize()
	return &sessionService{deps: deps}
}

func (s *sessionService) Refresh(ctx context.Context, in RefreshRequest) (*SessionResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.session"),
		logger.Op("Refresh"),
	)

	if in.RefreshToken == "" {
		return nil, failValidation("refresh token es obligatorio")
	}

	rot, err := s.deps.Ledger.VerifyAndRotate(ctx, in.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrReuseDetected):
			// El ledger ya mató la cadena y emitió el evento CRITICAL.
			s.audit(ctx, in.Ctx, audit.Entry{
				Action: "refresh", Status: "failure", Severity: audit.SeverityCritical,
				Metadata: map[string]any{"reason": "reuse_detected"},
			})
			return nil, &FlowError{Kind: KindSecurityAlert, Message: "volvé a iniciar sesión"}
		case errors.Is(err, ledger.ErrTokenNotFound):
			return nil, failNotFound("sesión no encontrada")
		case errors.Is(err, ledger.ErrInvalidToken):
			return nil, failCredentials("refresh token inválido")
		default:
			log.Error("rotation failed", logger.Err(err))
			return nil, failTransient("no se pudo rotar la sesión")
		}
	}
	log = log.With(logger.AccountID(rot.AccountID))

	// La cuenta pudo haber desaparecido entre emisión y rotación.
	acc, err := s.deps.Accounts.GetByID(ctx, rot.AccountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, failNotFound("la cuenta no existe")
		}
		return nil, failTransient("store no disponible")
	}

	now := s.deps.Now().UTC()
	access, exp, err := s.deps.Issuer.SignAccess(jwtx.AccessClaims{
		AccountID:   acc.ID,
		Email:       acc.Email,
		Role:        string(acc.Role),
		DisplayName: acc.DisplayName,
	}, now)
	if err != nil {
		log.Error("access sign failed", logger.Err(err))
		return nil, failTransient("no se pudo emitir el token")
	}

	log.Debug("session rotated")
	return &SessionResult{
		AccountID:    acc.ID,
		AccessToken:  access,
		RefreshToken: rot.RawRefresh,
		ExpiresIn:    int64(exp.Sub(now).Seconds()),
	}, nil
}

func (s *sessionService) Logout(ctx context.Context, in LogoutRequest) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.session"),
		logger.Op("Logout"),
	)

	if in.RefreshToken == "" {
		return failValidation("refresh token es obligatorio")
	}
	if err := s.deps.Ledger.RevokeOne(ctx, in.RefreshToken); err != nil {
		log.Warn("logout revoke failed", logger.Err(err))
		return failTransient("no se pudo cerrar la sesión")
	}
	s.audit(ctx, in.Ctx, audit.Entry{
		Action: "logout", Status: "success", Severity: audit.SeverityInfo,
	})
	log.Debug("session revoked")
	return nil
}

func (s *sessionService) LogoutAll(ctx context.Context, accountID string, authCtx AuthContext) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.session"),
		logger.Op("LogoutAll"),
		logger.AccountID(accountID),
	)

	if accountID == "" {
		return failValidation("account id es obligatorio")
	}
	n, err := s.deps.Ledger.RevokeAll(ctx, accountID)
	if err != nil {
		log.Error("revoke all failed", logger.Err(err))
		return failTransient("no se pudieron cerrar las sesiones")
	}
	s.audit(ctx, authCtx, audit.Entry{
		Action: "logout_all", Status: "success", Severity: audit.SeverityInfo,
		AccountID: accountID, Metadata: map[string]any{"revoked": n},
	})
	log.Info("all sessions revoked", logger.Count(n))
	return nil
}

func (s *sessionService) audit(ctx context.Context, actx AuthContext, e audit.Entry) {
	e.IP = actx.IP
	e.UserAgent = actx.UserAgent
	e.CorrelationID = actx.CorrelationID
	audit.Emit(ctx, s.deps.Audit, e)
}
