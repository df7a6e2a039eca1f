// Package health expone los probes de liveness y readiness.
package health

import (
	"context"
	"net/http"
	"time"

	httpx "github.com/talentdock/authcore/internal/http/httpx"
	"github.com/talentdock/authcore/internal/observability/logger"
)

// Pinger es lo mínimo que el probe necesita del store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Controller struct {
	store Pinger
}

func New(store Pinger) *Controller {
	return &Controller{store: store}
}

// Healthz maneja GET /healthz: el proceso está vivo.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz: el store responde.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if c.store != nil {
		if err := c.store.Ping(ctx); err != nil {
			logger.From(r.Context()).Warn("readiness probe failed", logger.Err(err))
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"store":  err.Error(),
			})
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
