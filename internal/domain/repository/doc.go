// Package repository define las entidades y los contratos de acceso a datos
// del motor OAuth2.
//
// Las implementaciones viven en internal/store (SQLite y PostgreSQL sobre
// database/sql). Los services sólo conocen estas interfaces.
//
//	services/oauth, services/password
//	              │
//	              ▼
//	  repository.DataAccess (interfaces)
//	              │
//	      ┌───────┴────────┐
//	      ▼                ▼
//	store (sqlite)   store (postgres)
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Los tiempos se guardan en UTC (milisegundos unix en la base)
//   - Errores de dominio en errors.go
package repository
