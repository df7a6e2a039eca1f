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
)

type accountService struct {
	deps Deps
}

// NewAccountService crea el servicio de registro y verificación de email.
func NewAccountService(deps Deps) AccountService {
	deps.normalize()
	return &accountService{deps: deps}
}

func (s *accountService) Register(ctx context.Context, in RegisterRequest) (*RegisterResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.account"),
		logger.Op("Register"),
	)

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.Email == "" || in.Password == "" || in.DisplayName == "" {
		return nil, failValidation("email, password y nombre son obligatorios")
	}
	role, err := repository.ParseRole(in.Role)
	if err != nil {
		return nil, failValidation("rol desconocido")
	}

	log = log.With(logger.Identifier(in.Email))

	if v := s.deps.Policy.Validate(in.Password, password.Context{
		DisplayName: in.DisplayName,
		Email:       in.Email,
	}); len(v) > 0 {
		return nil, failPolicy(v)
	}

	hash, err := password.Hash(s.deps.Hash, in.Password)
	if err != nil {
		log.Error("hash failed", logger.Err(err))
		return nil, failTransient("no se pudo crear la cuenta")
	}

	acc, err := s.deps.Accounts.Create(ctx, repository.CreateAccountInput{
		Email:        in.Email,
		Role:         role,
		DisplayName:  in.DisplayName,
		PasswordHash: hash,
		PasswordTTL:  s.deps.PasswordTTL,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, failConflict(CodeEmailTaken, "el email ya está registrado")
		}
		log.Error("account create failed", logger.Err(err))
		return nil, failTransient("no se pudo crear la cuenta")
	}
	log = log.With(logger.AccountID(acc.ID))

	// La entrega va antes de persistir el código: si el email falla la
	// cuenta queda sin código armado y el caller reintenta el envío.
	if err := s.sendVerificationCode(ctx, acc); err != nil {
		log.Error("verification code delivery failed", logger.Err(err))
		return nil, failTransient("la cuenta se creó pero no se pudo enviar el código de verificación")
	}

	s.audit(ctx, in.Ctx, audit.Entry{
		Action: "register", Status: "success", Severity: audit.SeverityInfo,
		AccountID: acc.ID, Identifier: acc.Email,
		Metadata: map[string]any{"role": string(role)},
	})
	log.Info("account registered")

	return &RegisterResult{AccountID: acc.ID}, nil
}

func (s *accountService) VerifyEmail(ctx context.Context, in VerifyEmailRequest) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.account"),
		logger.Op("VerifyEmail"),
	)

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Code = strings.TrimSpace(in.Code)
	if in.Email == "" || in.Code == "" {
		return failValidation("email y código son obligatorios")
	}

	acc, err := s.deps.Accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		if repository.IsNotFound(err) {
			return failNotFound("la cuenta no existe")
		}
		return failTransient("store no disponible")
	}
	if acc.EmailVerified {
		return nil
	}

	if !otp.Matches(acc.OneTimeCode, repository.CodeEmailVerification, in.Code, s.deps.Now().UTC()) {
		return failCredentials("código inválido o vencido")
	}

	if err := s.deps.Accounts.SetEmailVerified(ctx, acc.ID, true); err != nil {
		log.Error("verify flag write failed", logger.Err(err))
		return failTransient("store no disponible")
	}
	if err := s.deps.Accounts.SetOneTimeCode(ctx, acc.ID, nil); err != nil {
		log.Warn("code clear failed", logger.Err(err))
	}

	s.audit(ctx, in.Ctx, audit.Entry{
		Action: "verify_email", Status: "success", Severity: audit.SeverityInfo,
		AccountID: acc.ID, Identifier: acc.Email,
	})
	log.Info("email verified", logger.AccountID(acc.ID))
	return nil
}

func (s *accountService) sendVerificationCode(ctx context.Context, acc *repository.Account) error {
	now := s.deps.Now().UTC()
	plain, code, err := otp.Generate(repository.CodeEmailVerification, now)
	if err != nil {
		return err
	}
	msg, err := email.BuildCodeEmail(acc.Email, email.CodeEmailInput{
		Name:       acc.DisplayName,
		Code:       plain,
		Reason:     "verificación",
		TTLMinutes: int(otp.VerificationTTL.Minutes()),
	})
	if err != nil {
		return err
	}
	if err := s.deps.Email.Send(ctx, msg); err != nil {
		return err
	}
	if err := s.deps.Accounts.SetOneTimeCode(ctx, acc.ID, code); err != nil {
		return err
	}
	metrics.CodesSent.WithLabelValues(string(repository.CodeEmailVerification)).Inc()
	return nil
}

func (s *accountService) audit(ctx context.Context, actx AuthContext, e audit.Entry) {
	e.IP = actx.IP
	e.UserAgent = actx.UserAgent
	e.CorrelationID = actx.CorrelationID
	audit.Emit(ctx, s.deps.Audit, e)
}
