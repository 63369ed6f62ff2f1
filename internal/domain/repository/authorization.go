package repository

import (
	"context"
	"time"
)

// AuthorizationCodeTTL es la vida de un code desde que se emite.
const AuthorizationCodeTTL = time.Minute

// AuthorizationRequest es un flujo OAuth2 en vuelo, identificado por su pid.
// Se consume (borra) exactamente una vez, en el login exitoso.
type AuthorizationRequest struct {
	ID           int64
	PID          string
	ClientID     string
	ResponseType string
	RedirectURL  string
	Scope        string
	State        string
	CreatedAt    time.Time
}

// AuthorizationCode es de un solo uso y vive AuthorizationCodeTTL.
type AuthorizationCode struct {
	ID           int64
	Code         string
	UserID       int64
	ClientID     string
	Scope        string
	RedirectURL  string
	ResponseType string
	ExpiresAt    time.Time
}

// Expired es true también en el instante exacto de expiración.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// AuthorizationRequestRepository persiste los authorization requests.
type AuthorizationRequestRepository interface {
	// Create retorna ErrConflict si pid o state ya existen.
	Create(ctx context.Context, req AuthorizationRequest) error

	// GetByPID retorna ErrNotFound si no existe.
	GetByPID(ctx context.Context, pid string) (*AuthorizationRequest, error)

	// DeleteByPID retorna la cantidad de filas borradas (0 ó 1).
	DeleteByPID(ctx context.Context, pid string) (int64, error)

	// DeleteOlderThan borra requests abandonados (reaper).
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuthorizationCodeRepository persiste los codes.
type AuthorizationCodeRepository interface {
	// Create retorna ErrConflict si el code ya existe.
	Create(ctx context.Context, code AuthorizationCode) error

	// GetByCode retorna ErrNotFound si no existe (o ya fue consumido).
	GetByCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteByID retorna la cantidad de filas borradas (0 ó 1).
	DeleteByID(ctx context.Context, id int64) (int64, error)

	// DeleteExpired borra codes con expires_at <= now (reaper).
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
