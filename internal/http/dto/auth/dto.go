// Package auth contiene los DTOs del wire para los endpoints de auth.
package auth

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Role  string `json:"role"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// RefreshRequest es opcional: el refresh token normalmente viaja en la
// cookie; el body existe para clientes no-browser.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type TwoFactorCodeRequest struct {
	Code string `json:"code"`
}

type EmailTwoFactorRequest struct {
	Enabled bool `json:"enabled"`
}

// ─── Responses ───

type TokenResponse struct {
	AccessToken     string `json:"access_token"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int64  `json:"expires_in"`
	RefreshToken    string `json:"refresh_token,omitempty"`
	PasswordExpired bool   `json:"password_expired,omitempty"`
}

type VerificationRequiredResponse struct {
	RequiresVerification bool   `json:"requires_verification"`
	Method               string `json:"method"` // authenticator | email
}

type RegisterResponse struct {
	AccountID string `json:"account_id"`
	Message   string `json:"message"`
}

type EnrollResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
