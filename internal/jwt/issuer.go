// Package jwt emite y verifica los tokens del flujo OAuth2.
//
// Todos los tokens se firman HS256 con el secret_id de la aplicación, así el
// cliente puede verificarlos con el mismo secreto que usa en /token.
package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingSecret = errors.New("jwt: application has no secret")
	ErrInvalidToken  = errors.New("jwt: invalid token")
)

// TokenSet es el resultado de Issue: los tres JWT firmados, sus claims y el
// perfil que se devuelve al cliente.
type TokenSet struct {
	IDToken      string
	AccessToken  string
	RefreshToken string

	IDClaims      IDTokenClaims
	AccessClaims  AccessTokenClaims
	RefreshClaims RefreshTokenClaims

	User UserProfile
}

// Issuer firma tokens. Es stateless: la clave sale de cada aplicación.
type Issuer struct {
	Now func() time.Time
}

func NewIssuer() *Issuer {
	return &Issuer{Now: time.Now}
}

func (i *Issuer) now() time.Time {
	if i.Now == nil {
		return time.Now()
	}
	return i.Now()
}

// Issue emite id/access/refresh para user en app. permissions puede ser nil.
func (i *Issuer) Issue(app *repository.Application, user *repository.User, permissions []string, scope string) (*TokenSet, error) {
	if app == nil || user == nil {
		return nil, errors.New("jwt: nil application or user")
	}
	if app.SecretID == "" {
		return nil, ErrMissingSecret
	}
	if permissions == nil {
		permissions = []string{}
	}
	labels := user.Labels
	if labels == nil {
		labels = []string{}
	}

	now := i.now().UTC()
	iat := jwtv5.NewNumericDate(now)
	sub := strconv.FormatInt(user.ID, 10)
	profile := ProfileOf(user)

	idc := IDTokenClaims{
		Name:            profile.Name,
		GivenName:       profile.GivenName,
		FamilyName:      profile.FamilyName,
		Email:           profile.Email,
		Phone:           profile.Phone,
		IsAdmin:         profile.IsAdmin,
		IsSuperAdmin:    profile.IsSuperAdmin,
		IsActive:        profile.IsActive,
		AuthorizedParty: app.ClientID,
		AuthTime:        now.Unix(),
		UpdatedAt:       user.UpdatedAt.Unix(),
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   sub,
			Issuer:    app.Domain,
			Audience:  jwtv5.ClaimStrings{app.ClientID},
			ID:        uuid.NewString(),
			IssuedAt:  iat,
			ExpiresAt: jwtv5.NewNumericDate(now.Add(seconds(app.IDTokenExp))),
		},
	}

	common := func(lifetime int64) TokenClaims {
		return TokenClaims{
			AuthorizedParty: app.ClientID,
			Permissions:     permissions,
			Labels:          labels,
			IsAdmin:         user.IsAdmin,
			IsSuperAdmin:    user.IsSuperAdmin,
			Scope:           scope,
			RegisteredClaims: jwtv5.RegisteredClaims{
				Subject:   sub,
				Issuer:    app.Domain,
				ID:        uuid.NewString(),
				IssuedAt:  iat,
				ExpiresAt: jwtv5.NewNumericDate(now.Add(seconds(lifetime))),
			},
		}
	}
	ac := common(app.AccessTokenExp)
	rc := common(app.RefreshTokenExp)

	key := []byte(app.SecretID)
	set := &TokenSet{IDClaims: idc, AccessClaims: ac, RefreshClaims: rc, User: profile}
	var err error
	if set.IDToken, err = sign(idc, key); err != nil {
		return nil, fmt.Errorf("jwt: sign id token: %w", err)
	}
	if set.AccessToken, err = sign(ac, key); err != nil {
		return nil, fmt.Errorf("jwt: sign access token: %w", err)
	}
	if set.RefreshToken, err = sign(rc, key); err != nil {
		return nil, fmt.Errorf("jwt: sign refresh token: %w", err)
	}
	return set, nil
}

// ProfileOf arma el perfil público del usuario.
func ProfileOf(u *repository.User) UserProfile {
	return UserProfile{
		ID:           u.ID,
		Name:         strings.TrimSpace(u.FirstName + " " + u.LastName),
		GivenName:    u.FirstName,
		FamilyName:   u.LastName,
		Email:        u.Email,
		Phone:        u.Phone,
		IsAdmin:      u.IsAdmin,
		IsSuperAdmin: u.IsSuperAdmin,
		IsActive:     u.IsActive,
	}
}

func sign(claims jwtv5.Claims, key []byte) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	return tk.SignedString(key)
}

func seconds(n int64) time.Duration { return time.Duration(n) * time.Second }
