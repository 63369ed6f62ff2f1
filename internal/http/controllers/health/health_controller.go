// Package health contiene los controllers de liveness/readiness.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/iam/internal/http/helpers"
	"github.com/dropDatabas3/iam/internal/observability/logger"
)

// Pinger es cualquier dependencia con health check (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

type component struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type response struct {
	Status     string      `json:"status"`
	Version    string      `json:"version,omitempty"`
	Components []component `json:"components,omitempty"`
}

// HealthController maneja /healthz y /readyz.
type HealthController struct {
	version string
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHealthController recibe las dependencias a chequear en /readyz por nombre.
func NewHealthController(version string, checks map[string]Pinger) *HealthController {
	return &HealthController{version: version, checks: checks, timeout: 2 * time.Second}
}

// Healthz responde 200 mientras el proceso esté vivo.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, response{Status: "ok", Version: c.version})
}

// Readyz responde 503 si alguna dependencia no contesta.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	res := response{Status: "ready", Version: c.version}
	status := http.StatusOK
	for name, p := range c.checks {
		comp := component{Name: name, Status: "ok"}
		if err := p.Ping(ctx); err != nil {
			comp.Status, comp.Error = "unavailable", err.Error()
			res.Status, status = "unavailable", http.StatusServiceUnavailable
			log.Warn("readiness check failed", logger.Component(name), logger.Err(err))
		}
		res.Components = append(res.Components, comp)
	}
	helpers.WriteJSON(w, status, res)
}
