package jwt

import (
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// UserProfile es la vista pública del usuario: va dentro del ID token y en
// el campo "user" de la respuesta de /token.
type UserProfile struct {
	ID           int64  `json:"id,omitempty"`
	Name         string `json:"name"`
	GivenName    string `json:"given_name"`
	FamilyName   string `json:"family_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	IsAdmin      bool   `json:"is_admin"`
	IsSuperAdmin bool   `json:"is_super_admin"`
	IsActive     bool   `json:"is_active"`
}

// IDTokenClaims: perfil + claims OIDC.
type IDTokenClaims struct {
	Name         string `json:"name"`
	GivenName    string `json:"given_name"`
	FamilyName   string `json:"family_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	IsAdmin      bool   `json:"is_admin"`
	IsSuperAdmin bool   `json:"is_super_admin"`
	IsActive     bool   `json:"is_active"`

	AuthorizedParty string `json:"azp"`
	AuthTime        int64  `json:"auth_time"`
	UpdatedAt       int64  `json:"updated_at"`
	jwtv5.RegisteredClaims
}

// TokenClaims son los claims comunes de access y refresh token.
type TokenClaims struct {
	AuthorizedParty string   `json:"azp"`
	Permissions     []string `json:"permissions"`
	Labels          []string `json:"labels"`
	IsAdmin         bool     `json:"isAdmin"`
	IsSuperAdmin    bool     `json:"isSuperAdmin"`
	Scope           string   `json:"scope"`
	jwtv5.RegisteredClaims
}

// AccessTokenClaims y RefreshTokenClaims comparten forma; sólo cambia exp.
type (
	AccessTokenClaims  = TokenClaims
	RefreshTokenClaims = TokenClaims
)
