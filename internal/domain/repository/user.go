package repository

import (
	"context"
	"time"
)

// User es el usuario final. El motor OAuth2 lo lee para validar credenciales
// y armar los claims; la única mutación es el cambio de password del reset.
type User struct {
	ID           int64
	FirstName    string
	MiddleName   string
	LastName     string
	Email        string
	PasswordHash string
	Phone        string
	Image        string
	IsActive     bool
	IsAdmin      bool
	IsSuperAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Labels sólo se cargan con GetByID(..., withLabels=true).
	Labels []string
}

// CreateUserInput se usa desde el seed/CLI.
type CreateUserInput struct {
	FirstName    string
	MiddleName   string
	LastName     string
	Email        string
	PasswordHash string
	Phone        string
	IsActive     bool
	IsAdmin      bool
	IsSuperAdmin bool
	Labels       []string
}

// UserRepository agrupa las lecturas de usuario que necesita el core.
type UserRepository interface {
	// GetActiveByEmail busca por email exacto, sólo usuarios activos.
	// Retorna ErrNotFound si no existe o está inactivo.
	GetActiveByEmail(ctx context.Context, email string) (*User, error)

	// GetByEmail no filtra por estado (seed/CLI).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id int64, withLabels bool) (*User, error)

	// ResolvePermissions devuelve las keys distintas de permisos alcanzables
	// por user → roles → roles_to_permissions → permissions de la aplicación.
	ResolvePermissions(ctx context.Context, userID, applicationID int64) ([]string, error)

	// UpdatePassword reemplaza el hash. Retorna ErrNotFound si no existe.
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error

	// Create inserta el usuario (y sus labels, creando las que falten).
	Create(ctx context.Context, in CreateUserInput) (int64, error)

	// GrantPermission asegura role + permiso para el usuario en la aplicación.
	// Sólo lo usa el seed.
	GrantPermission(ctx context.Context, userID, applicationID int64, roleName, permissionKey string) error
}
