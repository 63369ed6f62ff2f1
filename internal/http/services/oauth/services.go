// Package oauth implementa el motor OAuth2: authorize, login, token y logout.
//
// Los services no conocen HTTP. Devuelven errores sentinela (o *ValidationError)
// que los controllers traducen a status y mensaje.
package oauth

import (
	"errors"
	"time"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	jwtx "github.com/dropDatabas3/iam/internal/jwt"
)

// Deps contiene las dependencias compartidas por los services.
type Deps struct {
	DAL repository.DataAccess

	// Applications permite inyectar el lookup cacheado; nil = DAL.Applications().
	Applications repository.ApplicationRepository

	Issuer  *jwtx.Issuer
	Metrics Recorder
	Now     func() time.Time
}

func (d *Deps) defaults() {
	if d.Applications == nil && d.DAL != nil {
		d.Applications = d.DAL.Applications()
	}
	if d.Issuer == nil {
		d.Issuer = jwtx.NewIssuer()
	}
	if d.Metrics == nil {
		d.Metrics = NoOpRecorder{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Services agrupa los services del flujo.
type Services struct {
	Verifier  *CredentialVerifier
	Authorize AuthorizeService
	Login     LoginService
	Token     TokenService
	Logout    LogoutService

	// Issuer verifica del lado relying los tokens que emite Token.
	Issuer *jwtx.Issuer
}

// NewServices arma todos los services con las mismas Deps.
func NewServices(d Deps) Services {
	d.defaults()
	verifier := NewCredentialVerifier(d.DAL.Users())
	return Services{
		Verifier:  verifier,
		Authorize: NewAuthorizeService(d),
		Login:     NewLoginService(d, verifier),
		Token:     NewTokenService(d),
		Logout:    NewLogoutService(d),
		Issuer:    d.Issuer,
	}
}

// Recorder recibe los eventos de dominio que se exportan como métricas.
type Recorder interface {
	TokenIssued(grantType string)
	ReplayDetected()
	LoginFailed(reason string)
}

// NoOpRecorder descarta los eventos.
type NoOpRecorder struct{}

func (NoOpRecorder) TokenIssued(string) {}
func (NoOpRecorder) ReplayDetected()    {}
func (NoOpRecorder) LoginFailed(string) {}

// ValidationError es un parámetro faltante o mal formado. Message es apto
// para el cliente.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// IsValidation reporta si err es (o envuelve) un *ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// Errores del flujo
var (
	ErrApplicationNotFound     = errors.New("application not found")
	ErrRedirectMismatch        = errors.New("redirect url does not match")
	ErrDuplicateState          = errors.New("state already in use")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrUserNotFound            = errors.New("user not found")
	ErrMissingAuthorizationReq = errors.New("missing authorization request")
	ErrCodeNotFound            = errors.New("authorization code not found")
	ErrCodeExpired             = errors.New("authorization code expired")
	ErrClientMismatch          = errors.New("client id does not match")
	ErrRefreshTokenNotFound    = errors.New("refresh token not found")
	ErrInvalidRefreshToken     = errors.New("invalid refresh token")
	ErrInvalidSecret           = errors.New("invalid client secret")
	ErrReplayDetected          = errors.New("refresh token replay detected")
	ErrUnsupportedGrantType    = errors.New("unsupported grant type")
)
