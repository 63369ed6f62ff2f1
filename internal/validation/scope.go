package validation

import "strings"

// SupportedScopes son los únicos scopes que acepta /authorize.
var SupportedScopes = []string{"email", "profile", "openid"}

// AllScopes es SupportedScopes unido por espacios (login del dashboard).
func AllScopes() string { return strings.Join(SupportedScopes, " ") }

// ValidScope verifica que scope sea una lista no vacía, separada por
// espacios, de scopes soportados (match exacto, case-sensitive). Los
// duplicados se toleran.
func ValidScope(scope string) bool {
	parts := strings.Fields(scope)
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if !isSupported(p) {
			return false
		}
	}
	return true
}

func isSupported(s string) bool {
	for _, sup := range SupportedScopes {
		if s == sup {
			return true
		}
	}
	return false
}
