package auth

import (
	"net/http"

	svc "github.com/talentdock/authcore/internal/auth"
	httpx "github.com/talentdock/authcore/internal/http/httpx"
	dto "github.com/talentdock/authcore/internal/http/dto/auth"
	"github.com/talentdock/authcore/internal/http/middlewares"
	"github.com/talentdock/authcore/internal/observability/logger"
)

// PasswordController maneja forgot / reset / change.
type PasswordController struct {
	service svc.PasswordService
}

func NewPasswordController(service svc.PasswordService) *PasswordController {
	return &PasswordController{service: service}
}

// Forgot maneja POST /v1/auth/forgot-password
func (c *PasswordController) Forgot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PasswordController.Forgot"))

	var req dto.ForgotPasswordRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	err := c.service.ForgotPassword(ctx, svc.ForgotPasswordRequest{
		Email: req.Email,
		Ctx:   authContext(r),
	})
	if err != nil {
		// Cuenta inexistente se enmascara con el OK genérico: este
		// endpoint es público y no debe confirmar qué emails existen.
		if fe, ok := svc.AsFlow(err); ok && fe.Kind == svc.KindNotFound {
			log.Debug("forgot for unknown account")
			httpx.WriteJSON(w, http.StatusOK, dto.MessageResponse{
				Message: "si la cuenta existe, te mandamos un código",
			})
			return
		}
		log.Debug("forgot failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Message: "si la cuenta existe, te mandamos un código",
	})
}

// Reset maneja POST /v1/auth/reset-password
func (c *PasswordController) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PasswordController.Reset"))

	var req dto.ResetPasswordRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	if err := c.service.ResetPassword(ctx, svc.ResetPasswordRequest{
		Email:       req.Email,
		Code:        req.Code,
		NewPassword: req.NewPassword,
		Ctx:         authContext(r),
	}); err != nil {
		log.Debug("reset failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "password restablecido, iniciá sesión de nuevo"})
}

// Change maneja POST /v1/auth/change-password (requiere access token)
func (c *PasswordController) Change(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PasswordController.Change"))

	accountID := middlewares.GetAccountID(ctx)
	if accountID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "falta el access token")
		return
	}

	var req dto.ChangePasswordRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	if err := c.service.ChangePassword(ctx, svc.ChangePasswordRequest{
		AccountID:       accountID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		Ctx:             authContext(r),
	}); err != nil {
		log.Debug("change failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "password cambiado, iniciá sesión de nuevo"})
}
