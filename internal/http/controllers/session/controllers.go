// Package session contiene los endpoints del lado relying: el dashboard del
// IAM es un cliente más de su propio servidor OAuth2 y guarda la sesión en
// cookies tipadas.
package session

import (
	svc "github.com/dropDatabas3/iam/internal/http/services/oauth"
	"github.com/dropDatabas3/iam/internal/session"
)

// Config es la identidad de la aplicación propia del IAM.
type Config struct {
	ClientID     string
	ClientSecret string
	// CallbackURL debe coincidir con el callback registrado de la app.
	CallbackURL string

	// AuthorizeURL es donde se inicia el flujo (default /api/oauth2/authorize).
	AuthorizeURL         string
	AppURL               string
	PostLoginRedirectURL string

	Cookies session.Options
}

type Controllers struct {
	Login    *LoginController
	Callback *CallbackController
	Logout   *LogoutController
}

func NewControllers(s svc.Services, cfg Config) *Controllers {
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = "/api/oauth2/authorize"
	}
	return &Controllers{
		Login:    &LoginController{cfg: cfg},
		Callback: &CallbackController{tokens: s.Token, issuer: s.Issuer, cfg: cfg},
		Logout:   &LogoutController{logout: s.Logout, cfg: cfg},
	}
}
