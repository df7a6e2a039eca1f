package auth

import (
	"context"
	"net/http"

	svc "github.com/talentdock/authcore/internal/auth"
	httpx "github.com/talentdock/authcore/internal/http/httpx"
	dto "github.com/talentdock/authcore/internal/http/dto/auth"
	"github.com/talentdock/authcore/internal/http/middlewares"
	"github.com/talentdock/authcore/internal/observability/logger"
)

// TwoFactorController maneja la administración del segundo factor.
// Todos los endpoints requieren access token.
type TwoFactorController struct {
	service svc.TwoFactorService
}

func NewTwoFactorController(service svc.TwoFactorService) *TwoFactorController {
	return &TwoFactorController{service: service}
}

// EnrollTOTP maneja POST /v1/auth/2fa/totp/enroll
func (c *TwoFactorController) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TwoFactorController.EnrollTOTP"))

	accountID := middlewares.GetAccountID(ctx)
	if accountID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "falta el access token")
		return
	}

	result, err := c.service.EnrollTOTP(ctx, accountID, authContext(r))
	if err != nil {
		log.Debug("enroll failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, dto.EnrollResponse{
		Secret:     result.Secret,
		OTPAuthURL: result.OTPAuthURL,
	})
}

// ConfirmTOTP maneja POST /v1/auth/2fa/totp/confirm
func (c *TwoFactorController) ConfirmTOTP(w http.ResponseWriter, r *http.Request) {
	c.withCode(w, r, "TwoFactorController.ConfirmTOTP", c.service.ConfirmTOTP, "authenticator activado")
}

// DisableTOTP maneja POST /v1/auth/2fa/totp/disable
func (c *TwoFactorController) DisableTOTP(w http.ResponseWriter, r *http.Request) {
	c.withCode(w, r, "TwoFactorController.DisableTOTP", c.service.DisableTOTP, "authenticator desactivado")
}

// SetEmail maneja POST /v1/auth/2fa/email
func (c *TwoFactorController) SetEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TwoFactorController.SetEmail"))

	accountID := middlewares.GetAccountID(ctx)
	if accountID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "falta el access token")
		return
	}

	var req dto.EmailTwoFactorRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	if err := c.service.SetEmailTwoFactor(ctx, accountID, req.Enabled, authContext(r)); err != nil {
		log.Debug("email 2fa update failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	msg := "2FA por email desactivado"
	if req.Enabled {
		msg = "2FA por email activado"
	}
	httpx.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: msg})
}

// withCode factoriza confirm/disable: ambos son "account + código".
func (c *TwoFactorController) withCode(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(ctx context.Context, accountID, code string, authCtx svc.AuthContext) error,
	okMsg string,
) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op(op))

	accountID := middlewares.GetAccountID(ctx)
	if accountID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "falta el access token")
		return
	}

	var req dto.TwoFactorCodeRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	if err := fn(ctx, accountID, req.Code, authContext(r)); err != nil {
		log.Debug("totp operation failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: okMsg})
}
