package auth

import (
	"net/http"

	svc "github.com/talentdock/authcore/internal/auth"
	httpx "github.com/talentdock/authcore/internal/http/httpx"
	dto "github.com/talentdock/authcore/internal/http/dto/auth"
	"github.com/talentdock/authcore/internal/observability/logger"
)

// LoginController maneja login y la segunda llamada de 2FA.
type LoginController struct {
	service svc.LoginService
	cookies CookieConfig
}

// NewLoginController crea un nuevo controller de login.
func NewLoginController(service svc.LoginService, cookies CookieConfig) *LoginController {
	return &LoginController{service: service, cookies: cookies}
}

// Login maneja POST /v1/auth/login
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	var req dto.LoginRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	result, err := c.service.Login(ctx, svc.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Ctx:      authContext(r),
	})
	if err != nil {
		log.Debug("login failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	c.respond(w, result)
}

// VerifyCode maneja POST /v1/auth/verify-code
func (c *LoginController) VerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.VerifyCode"))

	var req dto.VerifyCodeRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	result, err := c.service.VerifyCode(ctx, svc.VerifyCodeRequest{
		Email: req.Email,
		Code:  req.Code,
		Role:  req.Role,
		Ctx:   authContext(r),
	})
	if err != nil {
		log.Debug("code verification failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	c.respond(w, result)
}

func (c *LoginController) respond(w http.ResponseWriter, result *svc.LoginResult) {
	if result.RequiresVerification {
		httpx.WriteJSON(w, http.StatusOK, dto.VerificationRequiredResponse{
			RequiresVerification: true,
			Method:               result.Method,
		})
		return
	}

	c.cookies.set(w, result.RefreshToken)
	httpx.WriteJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken:     result.AccessToken,
		TokenType:       "Bearer",
		ExpiresIn:       result.ExpiresIn,
		RefreshToken:    result.RefreshToken,
		PasswordExpired: result.PasswordExpired,
	})
}
