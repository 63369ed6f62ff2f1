package logger

import "strings"

// MaskEmail deja la primera letra del usuario y del primer label del
// dominio: "ada@example.com" -> "a…@e….com". Sin "@" enmascara el string
// entero.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" {
		switch {
		case s == "":
			return ""
		case len(s) <= 3:
			return "***"
		default:
			return s[:1] + "…" + s[len(s)-1:]
		}
	}
	labels := strings.Split(domain, ".")
	if len(labels[0]) > 1 {
		labels[0] = labels[0][:1] + "…"
	}
	return shorten(local) + "@" + strings.Join(labels, ".")
}

func shorten(s string) string {
	if len(s) <= 1 {
		return s
	}
	return s[:1] + "…"
}
