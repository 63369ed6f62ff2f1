package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/iam/internal/http/middlewares"
)

// registerSessionRoutes monta /api/auth/* (lado relying del dashboard).
func registerSessionRoutes(r chi.Router, deps Deps) {
	c := deps.Session
	r.Use(mw.WithNoStore())

	r.Get("/login", c.Login.Login)
	r.Get("/callback", c.Callback.Callback)
	r.Post("/logout", c.Logout.Logout)
}
