// Package oauth contiene los controllers de /api/oauth2.
package oauth

import (
	svc "github.com/dropDatabas3/iam/internal/http/services/oauth"
	pwsvc "github.com/dropDatabas3/iam/internal/http/services/password"
)

// Config son las URLs del front del IAM a las que redirigen los pasos de browser.
type Config struct {
	// AppURL es la base del front (login, oauth-error).
	AppURL string
	// PostLoginRedirectURL se pasa a la página de error como "volver a".
	PostLoginRedirectURL string
}

// Controllers agrupa los controllers del dominio OAuth.
type Controllers struct {
	Authorize *AuthorizeController
	Login     *LoginController
	Token     *TokenController
	Logout    *LogoutController
	Password  *PasswordController
}

func NewControllers(s svc.Services, resets pwsvc.ResetService, cfg Config) *Controllers {
	return &Controllers{
		Authorize: NewAuthorizeController(s.Authorize, cfg),
		Login:     NewLoginController(s.Login),
		Token:     NewTokenController(s.Token),
		Logout:    NewLogoutController(s.Logout),
		Password:  NewPasswordController(resets),
	}
}
