package password

import "unicode/utf8"

// MinLength es el largo mínimo aceptado en login y reset.
const MinLength = 6

// Policy valida passwords nuevos (reset confirm, seed).
type Policy struct {
	MinLength int
	MaxLength int // bcrypt ignora todo después de 72 bytes
}

// DefaultPolicy es la que usa el servicio si config no dice otra cosa.
var DefaultPolicy = Policy{MinLength: MinLength, MaxLength: 72}

// Validate devuelve los motivos de rechazo, vacío si es válido.
func (p Policy) Validate(s string) (ok bool, reasons []string) {
	if utf8.RuneCountInString(s) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	if p.MaxLength > 0 && len(s) > p.MaxLength {
		reasons = append(reasons, "too_long")
	}
	return len(reasons) == 0, reasons
}
