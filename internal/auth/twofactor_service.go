package auth

import (
	"context"
	"strings"

	"github.com/talentdock/authcore/internal/audit"
	"github.com/talentdock/authcore/internal/domain/repository"
	"github.com/talentdock/authcore/internal/observability/logger"
	"github.com/talentdock/authcore/internal/security/totp"
)

type twoFactorService struct {
	deps Deps
}

// NewTwoFactorService crea el servicio de administración de 2FA.
func NewTwoFactorService(deps Deps) TwoFactorService {
	deps.normalize()
	return &twoFactorService{deps: deps}
}

func (s *twoFactorService) EnrollTOTP(ctx context.Context, accountID string, authCtx AuthContext) (*EnrollResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.twofactor"),
		logger.Op("EnrollTOTP"),
		logger.AccountID(accountID),
	)

	acc, err := s.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, failNotFound("la cuenta no existe")
		}
		return nil, failTransient("store no disponible")
	}

	_, secretB32, err := totp.GenerateSecret()
	if err != nil {
		log.Error("secret generation failed", logger.Err(err))
		return nil, failTransient("no se pudo generar el secreto")
	}

	// El secreto queda guardado pero el modo authenticator recién se
	// activa con ConfirmTOTP.
	if err := s.deps.Accounts.SetTwoFactor(ctx, acc.ID, acc.TwoFactorEnabled, secretB32); err != nil {
		log.Error("secret persist failed", logger.Err(err))
		return nil, failTransient("store no disponible")
	}

	log.Info("totp enrollment started")
	return &EnrollResult{
		Secret:     secretB32,
		OTPAuthURL: totp.OTPAuthURL(s.deps.TOTPIssuer, acc.Email, secretB32),
	}, nil
}

func (s *twoFactorService) ConfirmTOTP(ctx context.Context, accountID, code string, authCtx AuthContext) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.twofactor"),
		logger.Op("ConfirmTOTP"),
		logger.AccountID(accountID),
	)

	code = strings.TrimSpace(code)
	if code == "" {
		return failValidation("código es obligatorio")
	}

	acc, err := s.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return failNotFound("la cuenta no existe")
		}
		return failTransient("store no disponible")
	}
	if acc.TOTPSecret == "" {
		return failValidation("no hay un enrolamiento pendiente")
	}

	if !s.verifyTOTP(acc.TOTPSecret, code) {
		return failCredentials("código inválido")
	}

	if err := s.deps.Accounts.SetTwoFactor(ctx, acc.ID, true, acc.TOTPSecret); err != nil {
		log.Error("totp activation failed", logger.Err(err))
		return failTransient("store no disponible")
	}

	s.audit(ctx, authCtx, audit.Entry{
		Action: "totp_confirm", Status: "success", Severity: audit.SeverityInfo,
		AccountID: acc.ID, Identifier: acc.Email,
	})
	log.Info("totp confirmed")
	return nil
}

func (s *twoFactorService) DisableTOTP(ctx context.Context, accountID, code string, authCtx AuthContext) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.twofactor"),
		logger.Op("DisableTOTP"),
		logger.AccountID(accountID),
	)

	code = strings.TrimSpace(code)
	if code == "" {
		return failValidation("código es obligatorio")
	}

	acc, err := s.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return failNotFound("la cuenta no existe")
		}
		return failTransient("store no disponible")
	}
	if acc.TOTPSecret == "" {
		return failValidation("la cuenta no tiene authenticator configurado")
	}

	// Prueba de posesión del authenticator antes de bajar la guardia.
	if !s.verifyTOTP(acc.TOTPSecret, code) {
		s.audit(ctx, authCtx, audit.Entry{
			Action: "totp_disable", Status: "failure", Severity: audit.SeverityWarn,
			AccountID: acc.ID, Identifier: acc.Email,
			Metadata: map[string]any{"reason": "bad_code"},
		})
		return failCredentials("código inválido")
	}

	if err := s.deps.Accounts.SetTwoFactor(ctx, acc.ID, false, ""); err != nil {
		log.Error("totp disable failed", logger.Err(err))
		return failTransient("store no disponible")
	}

	s.audit(ctx, authCtx, audit.Entry{
		Action: "totp_disable", Status: "success", Severity: audit.SeverityInfo,
		AccountID: acc.ID, Identifier: acc.Email,
	})
	log.Info("totp disabled")
	return nil
}

func (s *twoFactorService) SetEmailTwoFactor(ctx context.Context, accountID string, enabled bool, authCtx AuthContext) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.twofactor"),
		logger.Op("SetEmailTwoFactor"),
		logger.AccountID(accountID),
	)

	acc, err := s.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return failNotFound("la cuenta no existe")
		}
		return failTransient("store no disponible")
	}

	// El modo email no usa secreto persistente: cualquier secreto de
	// authenticator previo se descarta.
	if err := s.deps.Accounts.SetTwoFactor(ctx, acc.ID, enabled, ""); err != nil {
		log.Error("twofactor write failed", logger.Err(err))
		return failTransient("store no disponible")
	}

	s.audit(ctx, authCtx, audit.Entry{
		Action: "email_2fa", Status: "success", Severity: audit.SeverityInfo,
		AccountID: acc.ID, Identifier: acc.Email,
		Metadata: map[string]any{"enabled": enabled},
	})
	log.Info("email twofactor updated", logger.Bool("enabled", enabled))
	return nil
}

func (s *twoFactorService) verifyTOTP(secretB32, code string) bool {
	secret, err := totp.DecodeSecret(secretB32)
	if err != nil {
		return false
	}
	return totp.Verify(secret, code, s.deps.Now().UTC(), 1)
}

func (s *twoFactorService) audit(ctx context.Context, actx AuthContext, e audit.Entry) {
	e.IP = actx.IP
	e.UserAgent = actx.UserAgent
	e.CorrelationID = actx.CorrelationID
	audit.Emit(ctx, s.deps.Audit, e)
}
