package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/iam/internal/http/middlewares"
)

func registerHealthRoutes(r chi.Router, deps Deps) {
	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Metrics != nil {
		r.Method("GET", "/metrics", mw.Chain(deps.Metrics.Handler(), mw.WithNoStore()))
	}
}
