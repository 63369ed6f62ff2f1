package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	"github.com/dropDatabas3/iam/internal/security/password"
)

// CredentialVerifier valida email + password contra los usuarios activos.
// No tiene efectos: no bloquea cuentas ni registra intentos.
type CredentialVerifier struct {
	users repository.UserRepository
}

func NewCredentialVerifier(users repository.UserRepository) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify retorna el usuario si las credenciales son correctas.
// Errores: ErrUserNotFound (inexistente o inactivo), ErrInvalidCredentials.
func (v *CredentialVerifier) Verify(ctx context.Context, email, plain string) (*repository.User, error) {
	u, err := v.users.GetActiveByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("verifier: lookup user: %w", err)
	}
	if err := password.Verify(u.PasswordHash, plain); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, ErrInvalidCredentials
		}
		// hash corrupto: para el cliente es lo mismo
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return u, nil
}
