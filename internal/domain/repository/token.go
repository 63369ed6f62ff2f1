package repository

import (
	"context"
	"time"
)

// RefreshToken es la fila que respalda un refresh token emitido.
//
// Key es el handle opaco que ve el cliente; Token es el JWT firmado.
// DescendantKey apunta a la key de la que desciende esta fila (la que se rotó
// para emitirla). RotatedAt se marca en la fila padre en la misma transacción
// que inserta la hija y no se borra nunca: una fila con RotatedAt presentada
// de nuevo es un replay, aunque la hija ya no exista (logout, purga, reaper).
type RefreshToken struct {
	ID            int64
	Key           string
	Token         string
	DescendantKey *string
	RotatedAt     *time.Time
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// RefreshTokenRepository persiste la cadena de rotación.
type RefreshTokenRepository interface {
	// Create retorna ErrConflict si key ya existe o si descendant_key ya fue
	// usada por otra rotación.
	Create(ctx context.Context, rt RefreshToken) error

	// GetByKey retorna ErrNotFound si no existe.
	GetByKey(ctx context.Context, key string) (*RefreshToken, error)

	// MarkRotated marca key como rotada si todavía no lo estaba. Retorna 0
	// si la fila no existe o ya había rotado (rotación concurrente).
	MarkRotated(ctx context.Context, key string, at time.Time) (int64, error)

	// PurgeChain borra el linaje completo de key: sube hasta la raíz y borra
	// todo lo que desciende de ella. Retorna la cantidad de filas borradas.
	PurgeChain(ctx context.Context, key string) (int64, error)

	// DeleteByKey retorna la cantidad de filas borradas (0 ó 1).
	DeleteByKey(ctx context.Context, key string) (int64, error)

	// DeleteExpired borra filas con expires_at <= now (reaper).
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
