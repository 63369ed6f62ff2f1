// Package store implementa repository.DataAccess sobre database/sql.
//
// Dialectos soportados:
//   - sqlite: modernc.org/sqlite (Go puro). Desarrollo, tests y despliegues chicos.
//   - postgres: pgx/v5 (pgxpool expuesto como *sql.DB vía pgx/v5/stdlib).
//
// Las queries se escriben con "?" y se reescriben a "$n" para postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Config configura la conexión.
type Config struct {
	Driver string // "sqlite" | "postgres"
	DSN    string

	// Solo postgres.
	MaxConns int32
}

// Store es el punto de entrada a la base. Es seguro para uso concurrente.
type Store struct {
	db      *sql.DB
	pool    *pgxpool.Pool // nil en sqlite
	dialect Dialect
}

var _ repository.DataAccess = (*Store)(nil)

// Open abre la base y verifica la conexión. No aplica migraciones.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("store: empty dsn")
	}

	s := &Store{dialect: d}
	switch d {
	case DialectPostgres:
		pcfg, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: parse postgres dsn: %w", err)
		}
		if cfg.MaxConns > 0 {
			pcfg.MaxConns = cfg.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return nil, fmt.Errorf("store: postgres pool: %w", err)
		}
		s.pool = pool
		s.db = stdlib.OpenDBFromPool(pool)
	default:
		db, err := sql.Open("sqlite", sqliteDSN(cfg.DSN))
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		// SQLite serializa escrituras; una sola conexión evita SQLITE_BUSY
		// entre transacciones concurrentes.
		db.SetMaxOpenConns(1)
		s.db = db
	}

	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN agrega los pragmas que el esquema necesita (foreign keys para
// ON DELETE SET NULL/CASCADE, WAL y busy_timeout).
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// DB expone el *sql.DB (migraciones, métricas de pool).
func (s *Store) DB() *sql.DB { return s.db }

// Pool expone el pgxpool en postgres; nil en sqlite.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Dialect retorna el dialecto activo.
func (s *Store) Dialect() Dialect { return s.dialect }

// Ping verifica la conexión.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close cierra la base (y el pool de pgx si corresponde).
func (s *Store) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// ─── DataAccess ───

func (s *Store) access() *dal { return &dal{q: s.db, d: s.dialect} }

func (s *Store) Applications() repository.ApplicationRepository { return s.access().Applications() }
func (s *Store) Users() repository.UserRepository               { return s.access().Users() }
func (s *Store) AuthorizationRequests() repository.AuthorizationRequestRepository {
	return s.access().AuthorizationRequests()
}
func (s *Store) AuthorizationCodes() repository.AuthorizationCodeRepository {
	return s.access().AuthorizationCodes()
}
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return s.access().RefreshTokens() }
func (s *Store) PasswordResets() repository.PasswordResetRepository {
	return s.access().PasswordResets()
}

// WithTx abre una transacción, ejecuta fn y hace commit si fn no falla.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.DataAccess) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer rollback(tx)

	if err := fn(&dal{q: tx, d: s.dialect, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// rollback ignora el error: después de un Commit exitoso siempre falla.
func rollback(tx *sql.Tx) { _ = tx.Rollback() }

// ─── dal: DataAccess ligado a un querier (db o tx) ───

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type dal struct {
	q    querier
	d    Dialect
	inTx bool
}

func (a *dal) Applications() repository.ApplicationRepository { return &applicationRepo{a} }
func (a *dal) Users() repository.UserRepository               { return &userRepo{a} }
func (a *dal) AuthorizationRequests() repository.AuthorizationRequestRepository {
	return &authRequestRepo{a}
}
func (a *dal) AuthorizationCodes() repository.AuthorizationCodeRepository { return &authCodeRepo{a} }
func (a *dal) RefreshTokens() repository.RefreshTokenRepository         { return &refreshTokenRepo{a} }
func (a *dal) PasswordResets() repository.PasswordResetRepository       { return &passwordResetRepo{a} }

// WithTx dentro de una transacción reutiliza la misma (no hay savepoints).
func (a *dal) WithTx(ctx context.Context, fn func(tx repository.DataAccess) error) error {
	if a.inTx {
		return fn(a)
	}
	db, ok := a.q.(*sql.DB)
	if !ok {
		return errors.New("store: querier without transaction support")
	}
	return (&Store{db: db, dialect: a.d}).WithTx(ctx, fn)
}

func (a *dal) Ping(ctx context.Context) error {
	var one int
	return a.q.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func (a *dal) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.q.ExecContext(ctx, a.d.Rebind(query), args...)
}

func (a *dal) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return a.q.QueryContext(ctx, a.d.Rebind(query), args...)
}

func (a *dal) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return a.q.QueryRowContext(ctx, a.d.Rebind(query), args...)
}

// affected devuelve RowsAffected envolviendo el error de exec.
func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
