// Package password hashea y verifica passwords de usuario con bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost es el costo usado al hashear passwords nuevos.
const DefaultCost = 10

// ErrMismatch se retorna cuando el password no corresponde al hash.
var ErrMismatch = errors.New("password: mismatch")

// Hash devuelve el hash bcrypt de plain.
func Hash(plain string) (string, error) {
	return HashWithCost(plain, DefaultCost)
}

// HashWithCost permite bajar el costo en tests.
func HashWithCost(plain string, cost int) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("password: empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(b), nil
}

// Verify compara en tiempo constante. Retorna ErrMismatch si no coincide y
// otro error si el hash guardado está corrupto.
func Verify(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	default:
		return fmt.Errorf("password: verify: %w", err)
	}
}
