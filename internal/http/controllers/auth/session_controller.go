package auth

import (
	"net/http"

	svc "github.com/talentdock/authcore/internal/auth"
	httpx "github.com/talentdock/authcore/internal/http/httpx"
	dto "github.com/talentdock/authcore/internal/http/dto/auth"
	"github.com/talentdock/authcore/internal/http/middlewares"
	"github.com/talentdock/authcore/internal/observability/logger"
)

// SessionController maneja rotación de refresh y logout.
type SessionController struct {
	service svc.SessionService
	cookies CookieConfig
}

func NewSessionController(service svc.SessionService, cookies CookieConfig) *SessionController {
	return &SessionController{service: service, cookies: cookies}
}

// Refresh maneja POST /v1/auth/refresh
func (c *SessionController) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.Refresh"))

	var req dto.RefreshRequest
	readOptionalJSON(r, &req)
	raw := c.cookies.refreshFromRequest(r, req.RefreshToken)
	if raw == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "falta el refresh token")
		return
	}

	result, err := c.service.Refresh(ctx, svc.RefreshRequest{
		RefreshToken: raw,
		Ctx:          authContext(r),
	})
	if err != nil {
		// Ante reuso detectado la cookie del cliente ya no sirve.
		if fe, ok := svc.AsFlow(err); ok && fe.Kind == svc.KindSecurityAlert {
			c.cookies.clear(w)
		}
		log.Debug("refresh failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	c.cookies.set(w, result.RefreshToken)
	httpx.WriteJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken:  result.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
		RefreshToken: result.RefreshToken,
	})
}

// Logout maneja POST /v1/auth/logout
func (c *SessionController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.Logout"))

	var req dto.RefreshRequest
	readOptionalJSON(r, &req)
	raw := c.cookies.refreshFromRequest(r, req.RefreshToken)
	if raw == "" {
		// Sin token no hay nada que revocar; igual limpiamos la cookie.
		c.cookies.clear(w)
		httpx.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "sesión cerrada"})
		return
	}

	if err := c.service.Logout(ctx, svc.LogoutRequest{
		RefreshToken: raw,
		Ctx:          authContext(r),
	}); err != nil {
		log.Debug("logout failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	c.cookies.clear(w)
	httpx.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "sesión cerrada"})
}

// LogoutAll maneja POST /v1/auth/logout-all (requiere access token)
func (c *SessionController) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.LogoutAll"))

	accountID := middlewares.GetAccountID(ctx)
	if accountID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "falta el access token")
		return
	}

	if err := c.service.LogoutAll(ctx, accountID, authContext(r)); err != nil {
		log.Debug("logout all failed", logger.Err(err))
		httpx.WriteFlowError(w, err)
		return
	}

	c.cookies.clear(w)
	httpx.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "todas las sesiones cerradas"})
}
