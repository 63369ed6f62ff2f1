package store

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/dropDatabas3/iam/migrations"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

// MigrationStatus resume el estado de una migración embebida.
type MigrationStatus struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

func (s *Store) provider() (*goose.Provider, error) {
	sub, err := fs.Sub(migrations.FS, migrations.Dir(string(s.dialect)))
	if err != nil {
		return nil, fmt.Errorf("store: migrations fs: %w", err)
	}
	gd := database.DialectSQLite3
	if s.dialect == DialectPostgres {
		gd = database.DialectPostgres
	}
	p, err := goose.NewProvider(gd, s.db, sub)
	if err != nil {
		return nil, fmt.Errorf("store: goose provider: %w", err)
	}
	return p, nil
}

// Migrate aplica las migraciones pendientes y retorna cuántas se aplicaron.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	p, err := s.provider()
	if err != nil {
		return 0, err
	}
	res, err := p.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: migrate up: %w", err)
	}
	return len(res), nil
}

// MigrationsStatus lista las migraciones conocidas y si están aplicadas.
func (s *Store) MigrationsStatus(ctx context.Context) ([]MigrationStatus, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	st, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: migrate status: %w", err)
	}
	out := make([]MigrationStatus, 0, len(st))
	for _, m := range st {
		out = append(out, MigrationStatus{
			Version:   m.Source.Version,
			Path:      m.Source.Path,
			Applied:   m.State == goose.StateApplied,
			AppliedAt: m.AppliedAt,
		})
	}
	return out, nil
}
