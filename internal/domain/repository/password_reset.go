package repository

import (
	"context"
	"time"
)

// MaxResetAttempts es la cantidad de códigos incorrectos tolerados antes de
// descartar el pedido.
const MaxResetAttempts = 5

// PasswordResetRequest es un pedido de reset en curso.
// AuthorizationRequestPID permite volver al login original al terminar.
// Verified se marca cuando el usuario presenta el código correcto; recién
// entonces se acepta el cambio de password.
type PasswordResetRequest struct {
	ID                      int64
	PID                     string
	Code                    string
	UserID                  int64
	AuthorizationRequestPID string
	Verified                bool
	Attempts                int
	ExpiresAt               time.Time
	CreatedAt               time.Time
}

// Expired es true también en el instante exacto de expiración.
func (p *PasswordResetRequest) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// PasswordResetRepository persiste los pedidos de reset.
type PasswordResetRepository interface {
	Create(ctx context.Context, req PasswordResetRequest) error

	// GetByPID retorna ErrNotFound si no existe.
	GetByPID(ctx context.Context, pid string) (*PasswordResetRequest, error)

	// DeleteByPID retorna la cantidad de filas borradas (0 ó 1).
	DeleteByPID(ctx context.Context, pid string) (int64, error)

	// MarkVerified retorna filas afectadas (0 si ya no existe).
	MarkVerified(ctx context.Context, pid string) (int64, error)

	// IncrementAttempts suma un intento fallido y retorna el total.
	IncrementAttempts(ctx context.Context, pid string) (int, error)

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
