package validation

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidUUID acepta sólo la forma canónica 8-4-4-4-12.
func ValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// ValidAbsoluteURL exige esquema http(s) y host.
func ValidAbsoluteURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidEmail es un chequeo mínimo (local@dominio); la verificación real la
// hace el lookup del usuario.
func ValidEmail(s string) bool {
	at := strings.LastIndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}
