package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/dropDatabas3/iam/internal/http/middlewares"
)

// registerOAuthRoutes monta /api/oauth2/*.
func registerOAuthRoutes(r chi.Router, deps Deps) {
	c := deps.OAuth

	// GET /api/oauth2/authorize (browser)
	r.Get("/authorize", c.Authorize.Authorize)

	// POST /api/oauth2/login?pid=
	r.With(limited(deps, deps.Limits.Login), mw.WithNoStore()).Post("/login", c.Login.Login)

	// token y logout los llaman los backends de las aplicaciones cliente
	r.Group(func(r chi.Router) {
		r.Use(corsFor(deps.CORSAllowedOrigins))
		r.Use(mw.WithNoStore())

		r.With(limited(deps, deps.Limits.Token)).Post("/token", c.Token.Token)
		r.Post("/logout", c.Logout.Logout)

		// preflight: lo responde cors antes de llegar acá
		r.Options("/token", http.NotFound)
		r.Options("/logout", http.NotFound)
	})

	// reset de password
	r.Group(func(r chi.Router) {
		r.Use(limited(deps, deps.Limits.Forgot), mw.WithNoStore())
		r.Post("/password-reset", c.Password.Request)
		r.Post("/password-reset-code", c.Password.Code)
		r.Post("/password-reset-confirm", c.Password.Confirm)
	})
}

func corsFor(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
