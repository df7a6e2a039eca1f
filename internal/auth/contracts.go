// Package auth orquesta los flujos de autenticación: verificación de
// credenciales, segundo factor, registro, ciclo de vida del password y
// sesiones. Compone los módulos de password, lockout, ledger y otp; el
// transporte HTTP queda afuera (los services nunca tocan cookies ni
// headers).
package auth

import (
	"context"
)

// LoginService define la verificación de credenciales en dos pasos.
type LoginService interface {
	// Login corre la máquina de estados completa:
	// lock check → lookup → email verificado → rol → password → 2FA → tokens.
	// Si hay segundo factor, devuelve RequiresVerification sin tokens.
	Login(ctx context.Context, in LoginRequest) (*LoginResult, error)

	// VerifyCode es la segunda llamada: TOTP (±1 paso) o código por
	// email (single-use). Los fallos alimentan el tracker de intentos.
	VerifyCode(ctx context.Context, in VerifyCodeRequest) (*LoginResult, error)
}

// AccountService cubre registro y verificación de email.
type AccountService interface {
	Register(ctx context.Context, in RegisterRequest) (*RegisterResult, error)

	// VerifyEmail consume un código de propósito verificación y marca
	// el email como verificado. Idempotente si ya estaba verificado.
	VerifyEmail(ctx context.Context, in VerifyEmailRequest) error
}

// PasswordService cubre el ciclo de vida del password.
type PasswordService interface {
	// ChangePassword exige prueba del password actual. Revoca todas
	// las sesiones al éxito.
	ChangePassword(ctx context.Context, in ChangePasswordRequest) error

	// ForgotPassword genera y envía un código de reset. El transporte
	// decide si enmascara la inexistencia de la cuenta.
	ForgotPassword(ctx context.Context, in ForgotPasswordRequest) error

	// ResetPassword exige un código de reset vigente. Un fallo de
	// política deja el código intacto para otro intento; solo el éxito
	// lo consume. Revoca todas las sesiones al éxito.
	ResetPassword(ctx context.Context, in ResetPasswordRequest) error
}

// SessionService cubre rotación de refresh tokens y logout.
type SessionService interface {
	// Refresh rota el refresh token presentado y emite un access token
	// nuevo. Reuso de un token revocado mata toda la cadena.
	Refresh(ctx context.Context, in RefreshRequest) (*SessionResult, error)

	// Logout revoca exactamente el token presentado. Idempotente.
	Logout(ctx context.Context, in LogoutRequest) error

	// LogoutAll revoca todas las sesiones activas de la cuenta.
	LogoutAll(ctx context.Context, accountID string, authCtx AuthContext) error
}

// TwoFactorService administra el segundo factor de una cuenta.
type TwoFactorService interface {
	// EnrollTOTP genera y guarda un secreto de authenticator, y
	// devuelve el otpauth:// URL para el QR. Se activa con ConfirmTOTP.
	EnrollTOTP(ctx context.Context, accountID string, authCtx AuthContext) (*EnrollResult, error)

	// ConfirmTOTP valida un código contra el secreto enrolado y activa
	// el modo authenticator.
	ConfirmTOTP(ctx context.Context, accountID, code string, authCtx AuthContext) error

	// DisableTOTP exige un código válido y desactiva el segundo factor.
	DisableTOTP(ctx context.Context, accountID, code string, authCtx AuthContext) error

	// SetEmailTwoFactor activa o desactiva el 2FA por código de email.
	// Limpia cualquier secreto de authenticator.
	SetEmailTwoFactor(ctx context.Context, accountID string, enabled bool, authCtx AuthContext) error
}
