package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/iam/internal/domain/repository"
)

// ─── RefreshTokenRepository ───

type refreshTokenRepo struct{ a *dal }

func (r *refreshTokenRepo) Create(ctx context.Context, rt repository.RefreshToken) error {
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = time.Now()
	}
	var descendant any
	if rt.DescendantKey != nil {
		descendant = *rt.DescendantKey
	}
	_, err := r.a.exec(ctx, `
		INSERT INTO refresh_tokens (key, token, descendant_key, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rt.Key, rt.Token, descendant, toMillis(rt.ExpiresAt), toMillis(rt.CreatedAt),
	)
	return mapErr("create refresh token", err)
}

const refreshColumns = `id, key, token, descendant_key, rotated_at, expires_at, created_at`

func (r *refreshTokenRepo) GetByKey(ctx context.Context, key string) (*repository.RefreshToken, error) {
	rt, err := scanRefreshToken(r.a.queryRow(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get refresh token: %w", err)
	}
	return rt, nil
}

func (r *refreshTokenRepo) MarkRotated(ctx context.Context, key string, at time.Time) (int64, error) {
	n, err := affected(r.a.exec(ctx,
		`UPDATE refresh_tokens SET rotated_at = ? WHERE key = ? AND rotated_at IS NULL`, toMillis(at), key))
	if err != nil {
		return 0, fmt.Errorf("store: mark refresh token rotated: %w", err)
	}
	return n, nil
}

// PurgeChain sube desde key hasta la raíz del linaje y borra la raíz con
// todos sus descendientes. Si la fila de key ya no existe se usa key como raíz
// igual, así se limpian los hijos que quedaron.
func (r *refreshTokenRepo) PurgeChain(ctx context.Context, key string) (int64, error) {
	root := key
	err := r.a.queryRow(ctx, `
		WITH RECURSIVE up (key, parent, depth) AS (
			SELECT key, descendant_key, 0 FROM refresh_tokens WHERE key = ?
			UNION ALL
			SELECT r.key, r.descendant_key, up.depth + 1
			FROM refresh_tokens r JOIN up ON r.key = up.parent
		)
		SELECT key FROM up ORDER BY depth DESC LIMIT 1`, key,
	).Scan(&root)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: refresh chain root: %w", err)
	}

	n, err := affected(r.a.exec(ctx, `
		WITH RECURSIVE chain (key) AS (
			SELECT CAST(? AS TEXT)
			UNION
			SELECT r.key FROM refresh_tokens r JOIN chain c ON r.descendant_key = c.key
		)
		DELETE FROM refresh_tokens WHERE key IN (SELECT key FROM chain)`, root))
	if err != nil {
		return 0, fmt.Errorf("store: purge refresh chain: %w", err)
	}
	return n, nil
}

func (r *refreshTokenRepo) DeleteByKey(ctx context.Context, key string) (int64, error) {
	n, err := affected(r.a.exec(ctx, `DELETE FROM refresh_tokens WHERE key = ?`, key))
	if err != nil {
		return 0, fmt.Errorf("store: delete refresh token: %w", err)
	}
	return n, nil
}

func (r *refreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := affected(r.a.exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, toMillis(now)))
	if err != nil {
		return 0, fmt.Errorf("store: reap refresh tokens: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefreshToken(row rowScanner) (*repository.RefreshToken, error) {
	var (
		rt                   repository.RefreshToken
		descendant           sql.NullString
		rotatedAt            sql.NullInt64
		expiresAt, createdAt int64
	)
	if err := row.Scan(&rt.ID, &rt.Key, &rt.Token, &descendant, &rotatedAt, &expiresAt, &createdAt); err != nil {
		return nil, err
	}
	if descendant.Valid {
		d := descendant.String
		rt.DescendantKey = &d
	}
	if rotatedAt.Valid {
		at := fromMillis(rotatedAt.Int64)
		rt.RotatedAt = &at
	}
	rt.ExpiresAt = fromMillis(expiresAt)
	rt.CreatedAt = fromMillis(createdAt)
	return &rt, nil
}
