package auth

import (
	"context"
	"strings"

	"github.com/talentdock/authcore/internal/audit"
	"github.com/talentdock/authcore/internal/domain/repository"
	"github.com/talentdock/authcore/internal/email"
	"github.com/talentdock/authcore/internal/metrics"
	"github.com/talentdock/authcore/internal/observability/logger"
	"github.com/talentdock/authcore/internal/security/otp"
	"github.com/talentdock/authcore/internal/security/password"
	"go.uber.org/zap"
)

type passwordService struct {
	deps Deps
}

// NewPasswordService crea el servicio de ciclo de vida del password.
func NewPasswordService(deps Deps) PasswordService {
	deps.normalize()
	return &passwordService{deps: deps}
}

func (s *passwordService) ChangePassword(ctx context.Context, in ChangePasswordRequest) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.password"),
		logger.Op("ChangePassword"),
		logger.AccountID(in.AccountID),
	)

	if in.AccountID == "" || in.CurrentPassword == "" || in.NewPassword == "" {
		return failValidation("password actual y nuevo son obligatorios")
	}

	acc, err := s.deps.Accounts.GetByID(ctx, in.AccountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return failNotFound("la cuenta no existe")
		}
		return failTransient("store no disponible")
	}

	// Prueba de conocimiento del password vigente.
	if !password.Verify(in.CurrentPassword, acc.PasswordHash) {
		s.audit(ctx, in.Ctx, audit.Entry{
			Action: "change_password", Status: "failure", Severity: audit.SeverityWarn,
			AccountID: acc.ID, Identifier: acc.Email,
			Metadata: map[string]any{"reason": "bad_current_password"},
		})
		return failCredentials("el password actual no es correcto")
	}

	if err := s.rotateCredential(ctx, acc, in.NewPassword, log); err != nil {
		return err
	}

	s.audit(ctx, in.Ctx, audit.Entry{
		Action: "change_password", Status: "success", Severity: audit.SeverityInfo,
		AccountID: acc.ID, Identifier: acc.Email,
	})
	log.Info("password changed")
	return nil
}

func (s *passwordService) ForgotPassword(ctx context.Context, in ForgotPasswordRequest) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.password"),
		logger.Op("ForgotPassword"),
	)

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" {
		return failValidation("email es obligatorio")
	}
	log = log.With(logger.Identifier(in.Email))

	acc, err := s.deps.Accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		if repository.IsNotFound(err) {
			// El transporte decide si enmascara este caso con un OK
			// genérico; el service no miente.
			return failNotFound("la cuenta no existe")
		}
		return failTransient("store no disponible")
	}

	now := s.deps.Now().UTC()
	plain, code, err := otp.Generate(repository.CodePasswordReset, now)
	if err != nil {
		log.Error("code generation failed", logger.Err(err))
		return failTransient("no se pudo generar el código")
	}
	msg, err := email.BuildCodeEmail(acc.Email, email.CodeEmailInput{
		Name:       acc.DisplayName,
		Code:       plain,
		Reason:     "restablecimiento",
		TTLMinutes: int(otp.ResetTTL.Minutes()),
	})
	if err != nil {
		return failTransient("no se pudo armar el email")
	}
	if err := s.deps.Email.Send(ctx, msg); err != nil {
		log.Error("reset code delivery failed", logger.Err(err))
		return failTransient("no se pudo enviar el código")
	}
	if err := s.deps.Accounts.SetOneTimeCode(ctx, acc.ID, code); err != nil {
		log.Error("code persist failed", logger.Err(err))
		return failTransient("store no disponible")
	}
	metrics.CodesSent.WithLabelValues(string(repository.CodePasswordReset)).Inc()

	s.audit(ctx, in.Ctx, audit.Entry{
		Action: "forgot_password", Status: "success", Severity: audit.SeverityInfo,
		AccountID: acc.ID, Identifier: acc.Email,
	})
	log.Info("reset code sent", logger.AccountID(acc.ID))
	return nil
}

func (s *passwordService) ResetPassword(ctx context.Context, in ResetPasswordRequest) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.password"),
		logger.Op("ResetPassword"),
	)

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Code = strings.TrimSpace(in.Code)
	if in.Email == "" || in.Code == "" || in.NewPassword == "" {
		return failValidation("email, código y password nuevo son obligatorios")
	}
	log = log.With(logger.Identifier(in.Email))

	acc, err := s.deps.Accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		if repository.IsNotFound(err) {
			return failNotFound("la cuenta no existe")
		}
		return failTransient("store no disponible")
	}

	if !otp.Matches(acc.OneTimeCode, repository.CodePasswordReset, in.Code, s.deps.Now().UTC()) {
		s.audit(ctx, in.Ctx, audit.Entry{
			Action: "reset_password", Status: "failure", Severity: audit.SeverityWarn,
			AccountID: acc.ID, Identifier: acc.Email,
			Metadata: map[string]any{"reason": "bad_code"},
		})
		return failCredentials("código inválido o vencido")
	}

	// Un rechazo de política acá deja el código vigente: el usuario
	// corrige el password y reintenta con el mismo código.
	if err := s.rotateCredential(ctx, acc, in.NewPassword, log); err != nil {
		return err
	}

	// Solo el éxito consume el código.
	if err := s.deps.Accounts.SetOneTimeCode(ctx, acc.ID, nil); err != nil {
		log.Warn("code clear failed", logger.Err(err))
	}

	s.audit(ctx, in.Ctx, audit.Entry{
		Action: "reset_password", Status: "success", Severity: audit.SeverityInfo,
		AccountID: acc.ID, Identifier: acc.Email,
	})
	log.Info("password reset", logger.AccountID(acc.ID))
	return nil
}

// rotateCredential aplica política + historial y rota el hash vivo en
// una sola escritura. Al éxito revoca todas las sesiones de la cuenta.
func (s *passwordService) rotateCredential(ctx context.Context, acc *repository.Account, next string, log *zap.Logger) error {
	if v := s.deps.Policy.Validate(next, password.Context{
		DisplayName: acc.DisplayName,
		Email:       acc.Email,
	}); len(v) > 0 {
		return failPolicy(v)
	}
	if password.WasRecentlyUsed(acc, next) {
		return failPolicy([]password.Violation{password.RecentlyUsed})
	}

	newHash, err := password.Hash(s.deps.Hash, next)
	if err != nil {
		log.Error("hash failed", logger.Err(err))
		return failTransient("no se pudo rotar el password")
	}

	// El hash saliente entra al historial antes de pisar el vivo: el
	// historial solo contiene hashes que alguna vez estuvieron vivos.
	rotated := *acc
	rotated.PushPasswordHistory(acc.PasswordHash)

	now := s.deps.Now().UTC()
	expires := now.Add(s.deps.PasswordTTL)
	if err := s.deps.Accounts.UpdatePassword(ctx, acc.ID, repository.UpdatePasswordInput{
		NewHash:   newHash,
		History:   rotated.PasswordHistory,
		ChangedAt: now,
		ExpiresAt: &expires,
	}); err != nil {
		log.Error("password write failed", logger.Err(err))
		return failTransient("store no disponible")
	}

	// Re-login en todos lados.
	if n, err := s.deps.Ledger.RevokeAll(ctx, acc.ID); err != nil {
		log.Warn("session revocation failed", logger.Err(err))
	} else if n > 0 {
		log.Info("sessions revoked", logger.Count(n))
	}
	return nil
}

func (s *passwordService) audit(ctx context.Context, actx AuthContext, e audit.Entry) {
	e.IP = actx.IP
	e.UserAgent = actx.UserAgent
	e.CorrelationID = actx.CorrelationID
	audit.Emit(ctx, s.deps.Audit, e)
}
