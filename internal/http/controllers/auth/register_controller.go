package auth

import (
	"net/http"

	svc "github.com/talentdock/authcore/internal/auth"
	httpx "github.com/talentdock/authcore/internal/http/httpx"
	dto "github.com/talentdock/authcore/internal/http/dto/auth"
	"github.com/talentdock/authcore/internal/observability/logger"
)

// RegisterController maneja alta de cuentas y verificación de email.
type RegisterController struct {
	service svc.AccountService
}

func NewRegisterController(service svc.AccountService) *RegisterController {
	return &RegisterController{service: service}
}

// Register maneja POST /v1/auth/register
func (c *RegisterController) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RegisterController.Register"))

	var req dto.RegisterRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	result, err := c.service.Register(ctx, svc.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		DisplayName: req.Name,
		Ctx:         authContext(r),
	})
	if err != nil {
		log.Debug("register failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, dto.RegisterResponse{
		AccountID: result.AccountID,
		Message:   "te mandamos un código para verificar el email",
	})
}

// VerifyEmail maneja POST /v1/auth/verify-email
func (c *RegisterController) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RegisterController.VerifyEmail"))

	var req dto.VerifyEmailRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	if err := c.service.VerifyEmail(ctx, svc.VerifyEmailRequest{
		Email: req.Email,
		Code:  req.Code,
		Ctx:   authContext(r),
	}); err != nil {
		log.Debug("email verification failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "email verificado"})
}
