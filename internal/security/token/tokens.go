package tokens

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// CodeLength es el largo del authorization code.
const CodeLength = 33

// ResetCodeLength es el largo del código numérico que se manda por mail.
const ResetCodeLength = 6

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewAuthorizationCode genera un code URL-safe de CodeLength caracteres.
func NewAuthorizationCode() (string, error) {
	// 25 bytes -> 34 chars base64url; recortamos a 33
	s, err := GenerateOpaqueToken(25)
	if err != nil {
		return "", fmt.Errorf("tokens: code: %w", err)
	}
	return s[:CodeLength], nil
}

// NewResetCode genera un código decimal de ResetCodeLength dígitos.
func NewResetCode() (string, error) {
	out := make([]byte, ResetCodeLength)
	ten := big.NewInt(10)
	for i := range out {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("tokens: reset code: %w", err)
		}
		out[i] = byte('0' + n.Int64())
	}
	return string(out), nil
}

// NewKey genera un uuid v4 (pid, refresh key, jti).
func NewKey() string {
	return uuid.NewString()
}

// Equal compara en tiempo constante.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
