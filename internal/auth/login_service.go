package auth

import (
	"context"
	"strings"

	"github.com/talentdock/authcore/internal/audit"
	"github.com/talentdock/authcore/internal/domain/repository"
	"github.com/talentdock/authcore/internal/email"
	jwtx "github.com/talentdock/authcore/internal/jwt"
	"github.com/talentdock/authcore/internal/lockout"
	"github.com/talentdock/authcore/internal/metrics"
	"github.com/talentdock/authcore/internal/observability/logger"
	"github.com/talentdock/authcore/internal/security/otp"
	"github.com/talentdock/authcore/internal/security/password"
	"github.com/talentdock/authcore/internal/security/totp"
	"go.uber.org/zap"
)

type loginService struct {
	deps Deps
}

// NewLoginService crea el servicio de verificación de credenciales.
func NewLoginService(deps Deps) LoginService {
	deps.normalize()
	return &loginService{deps: deps}
}

func (s *loginService) Login(ctx context.Context, in LoginRequest) (*LoginResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.login"),
		logger.Op("Login"),
	)

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || in.Password == "" {
		return nil, failValidation("email y password son obligatorios")
	}
	role, err := repository.ParseRole(in.Role)
	if err != nil {
		return nil, failValidation("rol desconocido")
	}

	log = log.With(logger.Identifier(in.Email))

	// Paso 1: lock check. Si está bloqueada no se toca el hash: ni
	// trabajo de hashing ni side-channel de timing.
	st, err := s.deps.Tracker.Status(ctx, in.Email)
	if err != nil {
		log.Error("lockout status failed", logger.Err(err))
		return nil, failTransient("no se pudo consultar el estado de bloqueo")
	}
	if st.Locked {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		s.audit(ctx, in.Ctx, audit.Entry{
			Action: "login", Status: "failure", Severity: audit.SeverityWarn,
			Identifier: in.Email, Metadata: map[string]any{"reason": "locked"},
		})
		return nil, failLocked(lockout.RetryAfterMinutes(st.RetryAfter))
	}

	// Paso 2: lookup
	acc, err := s.deps.Accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		if repository.IsNotFound(err) {
			metrics.LoginAttempts.WithLabelValues("rejected").Inc()
			return nil, failNotFound("la cuenta no existe")
		}
		log.Error("account lookup failed", logger.Err(err))
		return nil, failTransient("store no disponible")
	}
	log = log.With(logger.AccountID(acc.ID))

	// Paso 3: email verificado. Señal distinguida para que el caller
	// enrute a verificación en vez de mostrar error de password.
	if !acc.EmailVerified {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		return nil, failAuthorization(CodeEmailNotVerified, "email no verificado")
	}

	// Paso 4: rol declarado vs. rol de la cuenta. Chequeo de forma de
	// autorización, no de credenciales.
	if acc.Role != role {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		s.audit(ctx, in.Ctx, audit.Entry{
			Action: "login", Status: "failure", Severity: audit.SeverityWarn,
			AccountID: acc.ID, Identifier: in.Email,
			Metadata: map[string]any{"reason": "role_mismatch", "declared": string(role)},
		})
		return nil, failAuthorization(CodeRoleMismatch, "la cuenta no corresponde a ese rol")
	}

	// Paso 5: password
	if !password.Verify(in.Password, acc.PasswordHash) {
		return nil, s.recordFailure(ctx, in.Ctx, in.Email, acc.ID, "bad_password", log)
	}

	// Paso 6: password correcto limpia el contador. Los fallos de
	// segundo factor vuelven a contar desde cero.
	if err := s.deps.Tracker.Reset(ctx, in.Email); err != nil {
		log.Warn("attempt reset failed", logger.Err(err))
	}

	// Paso 7: segundo factor
	if acc.TwoFactorEnabled {
		if acc.TOTPSecret != "" {
			metrics.LoginAttempts.WithLabelValues("needs_2fa").Inc()
			log.Info("password ok, totp pending")
			return &LoginResult{RequiresVerification: true, Method: MethodAuthenticator, AccountID: acc.ID}, nil
		}
		if err := s.sendLoginCode(ctx, acc); err != nil {
			log.Error("login code delivery failed", logger.Err(err))
			return nil, failTransient("no se pudo enviar el código")
		}
		metrics.LoginAttempts.WithLabelValues("needs_2fa").Inc()
		log.Info("password ok, email code sent")
		return &LoginResult{RequiresVerification: true, Method: MethodEmail, AccountID: acc.ID}, nil
	}

	return s.issueSession(ctx, in.Ctx, acc, log)
}

func (s *loginService) VerifyCode(ctx context.Context, in VerifyCodeRequest) (*LoginResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.login"),
		logger.Op("VerifyCode"),
	)

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Code = strings.TrimSpace(in.Code)
	if in.Email == "" || in.Code == "" {
		return nil, failValidation("email y código son obligatorios")
	}
	role, err := repository.ParseRole(in.Role)
	if err != nil {
		return nil, failValidation("rol desconocido")
	}

	log = log.With(logger.Identifier(in.Email))

	st, err := s.deps.Tracker.Status(ctx, in.Email)
	if err != nil {
		return nil, failTransient("no se pudo consultar el estado de bloqueo")
	}
	if st.Locked {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		return nil, failLocked(lockout.RetryAfterMinutes(st.RetryAfter))
	}

	acc, err := s.deps.Accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, failNotFound("la cuenta no existe")
		}
		return nil, failTransient("store no disponible")
	}
	log = log.With(logger.AccountID(acc.ID))

	if acc.Role != role {
		return nil, failAuthorization(CodeRoleMismatch, "la cuenta no corresponde a ese rol")
	}
	if !acc.TwoFactorEnabled {
		return nil, failValidation("la cuenta no tiene verificación pendiente")
	}

	now := s.deps.Now().UTC()
	if acc.TOTPSecret != "" {
		secret, derr := totp.DecodeSecret(acc.TOTPSecret)
		if derr != nil {
			log.Error("stored totp secret is corrupt", logger.Err(derr))
			return nil, failTransient("segundo factor no disponible")
		}
		if !totp.Verify(secret, in.Code, now, 1) {
			return nil, s.recordFailure(ctx, in.Ctx, in.Email, acc.ID, "bad_totp", log)
		}
	} else {
		if !otp.Matches(acc.OneTimeCode, repository.CodeLoginSecondFactor, in.Code, now) {
			return nil, s.recordFailure(ctx, in.Ctx, in.Email, acc.ID, "bad_email_code", log)
		}
		// Single-use: el código se limpia apenas valida.
		if err := s.deps.Accounts.SetOneTimeCode(ctx, acc.ID, nil); err != nil {
			log.Error("code consume failed", logger.Err(err))
			return nil, failTransient("store no disponible")
		}
	}

	if err := s.deps.Tracker.Reset(ctx, in.Email); err != nil {
		log.Warn("attempt reset failed", logger.Err(err))
	}
	return s.issueSession(ctx, in.Ctx, acc, log)
}

// ─── Helpers ───

// recordFailure alimenta el tracker por un fallo de password o de
// segundo factor y traduce el estado resultante a un FlowError. El
// fallo que cruza el umbral emite el evento CRITICAL una sola vez.
func (s *loginService) recordFailure(ctx context.Context, actx AuthContext, identifier, accountID, reason string, log *zap.Logger) error {
	st, err := s.deps.Tracker.RecordFailure(ctx, identifier)
	if err != nil {
		log.Error("attempt record failed", logger.Err(err))
		return failTransient("no se pudo registrar el intento")
	}

	if st.JustLocked {
		metrics.Lockouts.Inc()
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		s.audit(ctx, actx, audit.Entry{
			Action: "lockout", Status: "failure", Severity: audit.SeverityCritical,
			AccountID: accountID, Identifier: identifier,
			Metadata: map[string]any{"reason": reason, "attempts": st.Count},
		})
		log.Warn("lockout triggered", logger.Count(st.Count))
		return failLocked(lockout.RetryAfterMinutes(st.RetryAfter))
	}
	if st.Locked {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		return failLocked(lockout.RetryAfterMinutes(st.RetryAfter))
	}

	metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
	s.audit(ctx, actx, audit.Entry{
		Action: "login", Status: "failure", Severity: audit.SeverityWarn,
		AccountID: accountID, Identifier: identifier,
		Metadata: map[string]any{"reason": reason, "attempts": st.Count},
	})
	log.Debug("credential check failed", logger.Count(st.Count))
	return failCredentials("credenciales inválidas")
}

// sendLoginCode genera el código de 2FA por email. Se envía antes de
// persistir: si la entrega falla, la cuenta no queda con un código
// armado a medias.
func (s *loginService) sendLoginCode(ctx context.Context, acc *repository.Account) error {
	now := s.deps.Now().UTC()
	plain, code, err := otp.Generate(repository.CodeLoginSecondFactor, now)
	if err != nil {
		return err
	}
	msg, err := email.BuildCodeEmail(acc.Email, email.CodeEmailInput{
		Name:       acc.DisplayName,
		Code:       plain,
		Reason:     "inicio de sesión",
		TTLMinutes: int(otp.LoginTTL.Minutes()),
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
	metrics.CodesSent.WithLabelValues(string(repository.CodeLoginSecondFactor)).Inc()
	return nil
}

// issueSession emite access + refresh para una cuenta ya verificada.
func (s *loginService) issueSession(ctx context.Context, actx AuthContext, acc *repository.Account, log *zap.Logger) (*LoginResult, error) {
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

	rawRefresh, _, err := s.deps.Ledger.Issue(ctx, acc.ID)
	if err != nil {
		log.Error("refresh issue failed", logger.Err(err))
		return nil, failTransient("no se pudo emitir el token")
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.audit(ctx, actx, audit.Entry{
		Action: "login", Status: "success", Severity: audit.SeverityInfo,
		AccountID: acc.ID, Identifier: acc.Email,
	})
	log.Info("login successful")

	return &LoginResult{
		AccountID:       acc.ID,
		AccessToken:     access,
		RefreshToken:    rawRefresh,
		ExpiresIn:       int64(exp.Sub(now).Seconds()),
		PasswordExpired: password.Expired(acc.PasswordChangedAt, acc.PasswordExpiresAt, now),
	}, nil
}

func (s *loginService) audit(ctx context.Context, actx AuthContext, e audit.Entry) {
	e.IP = actx.IP
	e.UserAgent = actx.UserAgent
	e.CorrelationID = actx.CorrelationID
	audit.Emit(ctx, s.deps.Audit, e)
}
