package auth_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/talentdock/authcore/internal/auth"
	"github.com/talentdock/authcore/internal/email"
	jwtx "github.com/talentdock/authcore/internal/jwt"
	"github.com/talentdock/authcore/internal/ledger"
	"github.com/talentdock/authcore/internal/lockout"
	"github.com/talentdock/authcore/internal/security/password"
	"github.com/talentdock/authcore/internal/security/totp"
	memstore "github.com/talentdock/authcore/internal/store/adapters/memory"
)

// fakeSender captura los mails en vez de enviarlos.
type fakeSender struct {
	mu   sync.Mutex
	msgs []email.Message
}

func (f *fakeSender) Send(_ context.Context, m email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
	return nil
}

var codeRe = regexp.MustCompile(`\b\d{6}\b`)

// lastCode extrae el one-time code del último mail capturado.
func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.msgs, "no se capturó ningún mail")
	code := codeRe.FindString(f.msgs[len(f.msgs)-1].TextBody)
	require.NotEmpty(t, code, "el mail no trae código")
	return code
}

type harness struct {
	login     auth.LoginService
	accounts  auth.AccountService
	passwords auth.PasswordService
	sessions  auth.SessionService
	twoFactor auth.TwoFactorService

	store  *memstore.Memory
	sender *fakeSender
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := jwtx.LoadOrCreateKey("")
	require.NoError(t, err)

	st := memstore.New()
	sender := &fakeSender{}
	issuer := jwtx.NewIssuer("authcore-test", key, 15*time.Minute)
	led := ledger.New(ledger.Deps{Tokens: st.RefreshTokens(), Issuer: issuer, TTL: time.Hour})

	deps := auth.Deps{
		Accounts: st.Accounts(),
		Ledger:   led,
		Tracker:  lockout.NewMemoryTracker(),
		Issuer:   issuer,
		Email:    sender,
		Policy:   password.DefaultPolicy(),
		// argon2 liviano: el costo de producción no aporta en tests
		Hash: password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32},
	}

	return &harness{
		login:     auth.NewLoginService(deps),
		accounts:  auth.NewAccountService(deps),
		passwords: auth.NewPasswordService(deps),
		sessions:  auth.NewSessionService(deps),
		twoFactor: auth.NewTwoFactorService(deps),
		store:     st,
		sender:    sender,
	}
}

const (
	testEmail = "ana@example.com"
	testPass  = "Tr3menda!Clave"
	testRole  = "candidate"
)

// registerVerified deja una cuenta registrada y con el email verificado.
func (h *harness) registerVerified(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	res, err := h.accounts.Register(ctx, auth.RegisterRequest{
		Email: testEmail, Password: testPass, Role: testRole, DisplayName: "Ana",
	})
	require.NoError(t, err)
	require.NoError(t, h.accounts.VerifyEmail(ctx, auth.VerifyEmailRequest{
		Email: testEmail, Code: h.sender.lastCode(t),
	}))
	return res.AccountID
}

func requireKind(t *testing.T, err error, kind auth.FailureKind) *auth.FlowError {
	t.Helper()
	require.Error(t, err)
	fe, ok := auth.AsFlow(err)
	require.True(t, ok, "esperaba FlowError, got %v", err)
	require.Equal(t, kind, fe.Kind, "mensaje: %s", fe.Message)
	return fe
}

// totpCode computa el código TOTP vigente para un secreto (RFC 6238,
// HMAC-SHA1, 30s, 6 dígitos).
func totpCode(secret []byte, at time.Time) string {
	counter := at.Unix() / 30
	var msg [8]byte
	for i := 7; i >= 0; i-- {
		msg[i] = byte(counter & 0xff)
		counter >>= 8
	}
	m := hmac.New(sha1.New, secret)
	m.Write(msg[:])
	sum := m.Sum(nil)
	offset := int(sum[len(sum)-1] & 0x0f)
	bin := (int(sum[offset])&0x7f)<<24 | int(sum[offset+1])<<16 | int(sum[offset+2])<<8 | int(sum[offset+3])
	return fmt.Sprintf("%06d", bin%1000000)
}

// ─── Registro y login ───

func TestRegistroVerificacionYLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.accounts.Register(ctx, auth.RegisterRequest{
		Email: testEmail, Password: testPass, Role: testRole, DisplayName: "Ana",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccountID)

	// Sin verificar el email, el login enruta a verificación
	_, err = h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	fe := requireKind(t, err, auth.KindAuthorizationMismatch)
	require.Equal(t, auth.CodeEmailNotVerified, fe.Code)

	require.NoError(t, h.accounts.VerifyEmail(ctx, auth.VerifyEmailRequest{
		Email: testEmail, Code: h.sender.lastCode(t),
	}))

	out, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	require.NoError(t, err)
	require.False(t, out.RequiresVerification)
	require.NotEmpty(t, out.AccessToken)
	require.NotEmpty(t, out.RefreshToken)
	require.False(t, out.PasswordExpired)
	require.Greater(t, out.ExpiresIn, int64(0))
}

func TestRegistro_EmailTomado(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t)

	_, err := h.accounts.Register(ctx, auth.RegisterRequest{
		Email: testEmail, Password: testPass, Role: testRole, DisplayName: "Otra Ana",
	})
	fe := requireKind(t, err, auth.KindConflict)
	require.Equal(t, auth.CodeEmailTaken, fe.Code)
}

func TestRegistro_PoliticaDePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.accounts.Register(ctx, auth.RegisterRequest{
		Email: testEmail, Password: "corta", Role: testRole, DisplayName: "Ana",
	})
	fe := requireKind(t, err, auth.KindPolicyViolation)
	// Todas las reglas incumplidas, no solo la primera
	require.GreaterOrEqual(t, len(fe.Violations), 3)
}

func TestLogin_RolIncorrecto(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t)

	_, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: "recruiter"})
	fe := requireKind(t, err, auth.KindAuthorizationMismatch)
	require.Equal(t, auth.CodeRoleMismatch, fe.Code)
}

func TestLogin_CuentaInexistente(t *testing.T) {
	h := newHarness(t)
	_, err := h.login.Login(context.Background(), auth.LoginRequest{
		Email: "nadie@example.com", Password: testPass, Role: testRole,
	})
	requireKind(t, err, auth.KindNotFound)
}

// ─── Lockout ───

func TestLogin_BloqueoPorFuerzaBruta(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t)

	// Cuatro fallos: credenciales inválidas
	for i := 0; i < lockout.Threshold-1; i++ {
		_, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: "Incorrecta1!", Role: testRole})
		requireKind(t, err, auth.KindInvalidCredentials)
	}

	// El quinto cruza el umbral
	_, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: "Incorrecta1!", Role: testRole})
	fe := requireKind(t, err, auth.KindRateLimited)
	require.Equal(t, auth.CodeLocked, fe.Code)
	require.Greater(t, fe.RetryAfterMinutes, 0)

	// Bloqueada: ni siquiera el password correcto entra
	_, err = h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	requireKind(t, err, auth.KindRateLimited)
}

func TestLogin_ExitoLimpiaElContador(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t)

	for i := 0; i < lockout.Threshold-1; i++ {
		_, _ = h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: "Incorrecta1!", Role: testRole})
	}
	_, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	require.NoError(t, err)

	// El contador arrancó de cero: cuatro fallos nuevos no bloquean
	for i := 0; i < lockout.Threshold-1; i++ {
		_, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: "Incorrecta1!", Role: testRole})
		requireKind(t, err, auth.KindInvalidCredentials)
	}
}

// ─── Segundo factor ───

func TestLogin_2FAPorEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.registerVerified(t)

	require.NoError(t, h.twoFactor.SetEmailTwoFactor(ctx, id, true, auth.AuthContext{}))

	out, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	require.NoError(t, err)
	require.True(t, out.RequiresVerification)
	require.Equal(t, auth.MethodEmail, out.Method)
	require.Empty(t, out.AccessToken)

	// Código equivocado: alimenta el tracker
	_, err = h.login.VerifyCode(ctx, auth.VerifyCodeRequest{Email: testEmail, Code: "000000", Role: testRole})
	requireKind(t, err, auth.KindInvalidCredentials)

	code := h.sender.lastCode(t)
	sess, err := h.login.VerifyCode(ctx, auth.VerifyCodeRequest{Email: testEmail, Code: code, Role: testRole})
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)

	// Single-use: el mismo código ya no sirve
	_, err = h.login.VerifyCode(ctx, auth.VerifyCodeRequest{Email: testEmail, Code: code, Role: testRole})
	requireKind(t, err, auth.KindInvalidCredentials)
}

func TestLogin_2FAConAuthenticator(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.registerVerified(t)

	enroll, err := h.twoFactor.EnrollTOTP(ctx, id, auth.AuthContext{})
	require.NoError(t, err)
	require.NotEmpty(t, enroll.Secret)
	require.Contains(t, enroll.OTPAuthURL, "otpauth://totp/")

	secret, err := totp.DecodeSecret(enroll.Secret)
	require.NoError(t, err)

	// Enrolamiento pendiente: el login todavía no exige TOTP
	out, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	require.NoError(t, err)
	require.False(t, out.RequiresVerification)

	require.NoError(t, h.twoFactor.ConfirmTOTP(ctx, id, totpCode(secret, time.Now()), auth.AuthContext{}))

	out, err = h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	require.NoError(t, err)
	require.True(t, out.RequiresVerification)
	require.Equal(t, auth.MethodAuthenticator, out.Method)

	_, err = h.login.VerifyCode(ctx, auth.VerifyCodeRequest{Email: testEmail, Code: "000000", Role: testRole})
	requireKind(t, err, auth.KindInvalidCredentials)

	sess, err := h.login.VerifyCode(ctx, auth.VerifyCodeRequest{
		Email: testEmail, Code: totpCode(secret, time.Now()), Role: testRole,
	})
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)

	// Desactivar exige un código válido
	require.Error(t, h.twoFactor.DisableTOTP(ctx, id, "000000", auth.AuthContext{}))
	require.NoError(t, h.twoFactor.DisableTOTP(ctx, id, totpCode(secret, time.Now()), auth.AuthContext{}))

	out, err = h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	require.NoError(t, err)
	require.False(t, out.RequiresVerification)
}

// ─── Ciclo de vida del password ───

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.registerVerified(t)

	// Prueba del password actual
	err := h.passwords.ChangePassword(ctx, auth.ChangePasswordRequest{
		AccountID: id, CurrentPassword: "Incorrecta1!", NewPassword: "Nuev4!Clave9",
	})
	requireKind(t, err, auth.KindInvalidCredentials)

	// Política sobre el nuevo
	err = h.passwords.ChangePassword(ctx, auth.ChangePasswordRequest{
		AccountID: id, CurrentPassword: testPass, NewPassword: "corta",
	})
	requireKind(t, err, auth.KindPolicyViolation)

	// Reusar el actual viola el historial
	err = h.passwords.ChangePassword(ctx, auth.ChangePasswordRequest{
		AccountID: id, CurrentPassword: testPass, NewPassword: testPass,
	})
	fe := requireKind(t, err, auth.KindPolicyViolation)
	require.Contains(t, fe.Violations, password.RecentlyUsed)

	// Cambio válido
	out, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	require.NoError(t, err)
	require.NoError(t, h.passwords.ChangePassword(ctx, auth.ChangePasswordRequest{
		AccountID: id, CurrentPassword: testPass, NewPassword: "Nuev4!Clave9",
	}))

	// Las sesiones previas quedan revocadas
	_, err = h.sessions.Refresh(ctx, auth.RefreshRequest{RefreshToken: out.RefreshToken})
	require.Error(t, err)

	// El password viejo ya no entra; el nuevo sí
	_, err = h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	requireKind(t, err, auth.KindInvalidCredentials)
	_, err = h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: "Nuev4!Clave9", Role: testRole})
	require.NoError(t, err)
}

func TestResetPassword_ElCodigoSobreviveUnRechazoDePolitica(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t)

	require.NoError(t, h.passwords.ForgotPassword(ctx, auth.ForgotPasswordRequest{Email: testEmail}))
	code := h.sender.lastCode(t)

	// Primer intento: password débil. El código NO se consume.
	err := h.passwords.ResetPassword(ctx, auth.ResetPasswordRequest{
		Email: testEmail, Code: code, NewPassword: "debil",
	})
	requireKind(t, err, auth.KindPolicyViolation)

	// Mismo código, password fuerte: ahora sí
	require.NoError(t, h.passwords.ResetPassword(ctx, auth.ResetPasswordRequest{
		Email: testEmail, Code: code, NewPassword: "Nuev4!Clave9",
	}))

	// Consumido: el mismo código ya no sirve
	err = h.passwords.ResetPassword(ctx, auth.ResetPasswordRequest{
		Email: testEmail, Code: code, NewPassword: "Otr4!Clave77",
	})
	requireKind(t, err, auth.KindInvalidCredentials)

	_, err = h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: "Nuev4!Clave9", Role: testRole})
	require.NoError(t, err)
}

func TestResetPassword_CodigoIncorrecto(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t)

	require.NoError(t, h.passwords.ForgotPassword(ctx, auth.ForgotPasswordRequest{Email: testEmail}))
	err := h.passwords.ResetPassword(ctx, auth.ResetPasswordRequest{
		Email: testEmail, Code: "000000", NewPassword: "Nuev4!Clave9",
	})
	requireKind(t, err, auth.KindInvalidCredentials)
}

func TestForgotPassword_CuentaInexistente(t *testing.T) {
	h := newHarness(t)
	// El service es honesto; el enmascaramiento es del transporte.
	err := h.passwords.ForgotPassword(context.Background(), auth.ForgotPasswordRequest{Email: "nadie@example.com"})
	requireKind(t, err, auth.KindNotFound)
}

// ─── Sesiones ───

func TestRefresh_RotacionYReuso(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t)

	out, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	require.NoError(t, err)

	sess, err := h.sessions.Refresh(ctx, auth.RefreshRequest{RefreshToken: out.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEqual(t, out.RefreshToken, sess.RefreshToken)

	// Replay del token rotado: alerta de seguridad
	_, err = h.sessions.Refresh(ctx, auth.RefreshRequest{RefreshToken: out.RefreshToken})
	requireKind(t, err, auth.KindSecurityAlert)

	// Chain kill: el token nuevo también murió
	_, err = h.sessions.Refresh(ctx, auth.RefreshRequest{RefreshToken: sess.RefreshToken})
	requireKind(t, err, auth.KindSecurityAlert)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerVerified(t)

	// Dos sesiones de la misma cuenta (dos dispositivos).
	out, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	require.NoError(t, err)
	other, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
	require.NoError(t, err)

	require.NoError(t, h.sessions.Logout(ctx, auth.LogoutRequest{RefreshToken: out.RefreshToken}))
	// Idempotente
	require.NoError(t, h.sessions.Logout(ctx, auth.LogoutRequest{RefreshToken: out.RefreshToken}))

	_, err = h.sessions.Refresh(ctx, auth.RefreshRequest{RefreshToken: out.RefreshToken})
	require.Error(t, err)

	// El logout revoca exactamente esa sesión: la otra sigue rotando.
	rotated, err := h.sessions.Refresh(ctx, auth.RefreshRequest{RefreshToken: other.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, rotated.RefreshToken)
}

func TestLogoutAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.registerVerified(t)

	var tokens []string
	for i := 0; i < 3; i++ {
		out, err := h.login.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPass, Role: testRole})
		require.NoError(t, err)
		tokens = append(tokens, out.RefreshToken)
	}

	require.NoError(t, h.sessions.LogoutAll(ctx, id, auth.AuthContext{}))
	for _, tk := range tokens {
		_, err := h.sessions.Refresh(ctx, auth.RefreshRequest{RefreshToken: tk})
		require.Error(t, err)
	}
}
