// Package oauth contiene los DTOs del flujo OAuth2.
package oauth

import (
	"time"

	jwtx "github.com/dropDatabas3/iam/internal/jwt"
)

// AuthorizeRequest son los query params de GET /authorize.
type AuthorizeRequest struct {
	ResponseType string
	ClientID     string
	RedirectURL  string
	Scope        string
	State        string
}

// LoginRequest combina el pid (query) con las credenciales (body).
type LoginRequest struct {
	PID      string `json:"-"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse es lo que el front necesita para volver al cliente.
type LoginResponse struct {
	Code        string `json:"code"`
	State       string `json:"state"`
	RedirectURL string `json:"redirectUrl"`
}

// TokenRequest son los parámetros de POST /token.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	RedirectURL  string
	ClientSecret string
	Code         string
	RefreshToken string
}

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// TokenResponse: refreshToken es la key opaca de la fila, no el JWT.
type TokenResponse struct {
	IDToken      string           `json:"idToken"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	User         jwtx.UserProfile `json:"user"`

	// RefreshExpiresAt es el exp del refresh JWT; la key opaca no lo lleva.
	RefreshExpiresAt time.Time `json:"-"`
}

// LogoutRequest es el body de POST /logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
