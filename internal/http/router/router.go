// Package router arma el árbol de rutas chi del IAM.
package router

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	healthctrl "github.com/dropDatabas3/iam/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/iam/internal/http/controllers/oauth"
	sessionctrl "github.com/dropDatabas3/iam/internal/http/controllers/session"
	mw "github.com/dropDatabas3/iam/internal/http/middlewares"
	"github.com/dropDatabas3/iam/internal/metrics"
	"github.com/dropDatabas3/iam/internal/rate"
)

// Limit es un par límite/ventana por grupo de endpoints.
type Limit struct {
	Limit  int
	Window time.Duration
}

// RateLimits por grupo. Limit 0 = sin límite para ese grupo.
type RateLimits struct {
	Login  Limit
	Token  Limit
	Forgot Limit
}

// Deps contiene todo lo que el router necesita.
type Deps struct {
	OAuth   *oauthctrl.Controllers
	Session *sessionctrl.Controllers
	Health  *healthctrl.HealthController

	// Opcionales
	Metrics  *metrics.Metrics
	Limiters *rate.Pool
	Limits   RateLimits

	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	// TrustedProxies habilita X-Forwarded-For sólo desde estos peers.
	TrustedProxies []netip.Prefix
}

// New devuelve el handler raíz.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRealIP(deps.TrustedProxies))
	r.Use(mw.WithRecover(), mw.WithRequestID(), mw.WithLogging(), mw.WithSecurityHeaders())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	if deps.RequestTimeout > 0 {
		r.Use(middleware.Timeout(deps.RequestTimeout))
	}

	if deps.Health != nil {
		registerHealthRoutes(r, deps)
	}
	if deps.OAuth != nil {
		r.Route("/api/oauth2", func(r chi.Router) { registerOAuthRoutes(r, deps) })
	}
	if deps.Session != nil {
		r.Route("/api/auth", func(r chi.Router) { registerSessionRoutes(r, deps) })
	}
	return r
}

// limited arma el middleware de rate limit para un grupo.
func limited(deps Deps, l Limit) mw.Middleware {
	if deps.Limiters == nil || l.Limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	cfg := mw.RateLimitConfig{Limiter: deps.Limiters.For(l.Limit, l.Window)}
	if deps.Metrics != nil {
		cfg.OnLimited = deps.Metrics.RateLimited
	}
	return mw.WithRateLimit(cfg)
}
