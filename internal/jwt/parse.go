package jwt

import (
	"fmt"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ParseRefresh valida firma HS256 con secret y exp, y devuelve los claims.
func (i *Issuer) ParseRefresh(token, secret string) (*RefreshTokenClaims, error) {
	c := &RefreshTokenClaims{}
	if err := i.parse(token, secret, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseAccess es el equivalente para access tokens.
func (i *Issuer) ParseAccess(token, secret string) (*AccessTokenClaims, error) {
	c := &AccessTokenClaims{}
	if err := i.parse(token, secret, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseIDToken además exige que aud contenga clientID.
func (i *Issuer) ParseIDToken(token, secret, clientID string) (*IDTokenClaims, error) {
	c := &IDTokenClaims{}
	if err := i.parse(token, secret, c, jwtv5.WithAudience(clientID)); err != nil {
		return nil, err
	}
	return c, nil
}

func (i *Issuer) parse(token, secret string, claims jwtv5.Claims, opts ...jwtv5.ParserOption) error {
	if token == "" || secret == "" {
		return ErrInvalidToken
	}
	opts = append(opts,
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuedAt(),
		jwtv5.WithTimeFunc(i.now),
	)
	tok, err := jwtv5.ParseWithClaims(token, claims, func(*jwtv5.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}
