// Package migrations embebe el DDL del servicio, un directorio por dialecto.
// Los archivos siguen el formato de goose: {version}_{nombre}.sql.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Dir devuelve el subdirectorio de FS para el dialecto dado.
func Dir(dialect string) string {
	if dialect == "postgres" {
		return "postgres"
	}
	return "sqlite"
}
