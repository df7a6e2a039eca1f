package auth

// Métodos de segundo factor señalados en LoginResult.
const (
	MethodAuthenticator = "authenticator"
	MethodEmail         = "email"
)

type LoginRequest struct {
	Email    string
	Password string
	// Role es el rol declarado por el caller (la pestaña desde la que
	// entra). Debe coincidir con el rol de la cuenta.
	Role string
	Ctx  AuthContext
}

type VerifyCodeRequest struct {
	Email string
	Code  string
	Role  string
	Ctx   AuthContext
}

// LoginResult es el resultado de Login o VerifyCode. Con segundo factor
// pendiente viene RequiresVerification=true y sin tokens.
type LoginResult struct {
	RequiresVerification bool
	Method               string // authenticator | email

	AccountID    string
	AccessToken  string
	RefreshToken string // crudo, el caller lo pone en la cookie
	ExpiresIn    int64  // segundos de vida del access token

	// PasswordExpired es informativo: el login no se bloquea, el caller
	// puede sugerir un cambio de password.
	PasswordExpired bool
}

type RegisterRequest struct {
	Email       string
	Password    string
	Role        string
	DisplayName string
	Ctx         AuthContext
}

type RegisterResult struct {
	AccountID string
}

type VerifyEmailRequest struct {
	Email string
	Code  string
	Ctx   AuthContext
}

type ChangePasswordRequest struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
	Ctx             AuthContext
}

type ForgotPasswordRequest struct {
	Email string
	Ctx   AuthContext
}

type ResetPasswordRequest struct {
	Email       string
	Code        string
	NewPassword string
	Ctx         AuthContext
}

type RefreshRequest struct {
	RefreshToken string
	Ctx          AuthContext
}

type LogoutRequest struct {
	RefreshToken string
	Ctx          AuthContext
}

type SessionResult struct {
	AccountID    string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type EnrollResult struct {
	Secret     string // base32, para entrada manual
	OTPAuthURL string // para el QR
}
