package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/iam/internal/domain/repository"
)

// ─── PasswordResetRepository ───

type passwordResetRepo struct{ a *dal }

func (r *passwordResetRepo) Create(ctx context.Context, p repository.PasswordResetRequest) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := r.a.exec(ctx, `
		INSERT INTO password_reset_requests (pid, code, user_id, authorization_request_pid, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.PID, p.Code, p.UserID, p.AuthorizationRequestPID, toMillis(p.ExpiresAt), toMillis(p.CreatedAt),
	)
	return mapErr("create password reset", err)
}

func (r *passwordResetRepo) GetByPID(ctx context.Context, pid string) (*repository.PasswordResetRequest, error) {
	var (
		p                    repository.PasswordResetRequest
		expiresAt, createdAt int64
	)
	err := r.a.queryRow(ctx, `
		SELECT id, pid, code, user_id, authorization_request_pid, verified, attempts, expires_at, created_at
		FROM password_reset_requests WHERE pid = ?`, pid,
	).Scan(&p.ID, &p.PID, &p.Code, &p.UserID, &p.AuthorizationRequestPID, &p.Verified, &p.Attempts, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get password reset: %w", err)
	}
	p.ExpiresAt = fromMillis(expiresAt)
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

func (r *passwordResetRepo) DeleteByPID(ctx context.Context, pid string) (int64, error) {
	n, err := affected(r.a.exec(ctx, `DELETE FROM password_reset_requests WHERE pid = ?`, pid))
	if err != nil {
		return 0, fmt.Errorf("store: delete password reset: %w", err)
	}
	return n, nil
}

func (r *passwordResetRepo) MarkVerified(ctx context.Context, pid string) (int64, error) {
	n, err := affected(r.a.exec(ctx, `UPDATE password_reset_requests SET verified = ? WHERE pid = ?`, true, pid))
	if err != nil {
		return 0, fmt.Errorf("store: verify password reset: %w", err)
	}
	return n, nil
}

func (r *passwordResetRepo) IncrementAttempts(ctx context.Context, pid string) (int, error) {
	var attempts int
	err := r.a.queryRow(ctx, `
		UPDATE password_reset_requests SET attempts = attempts + 1
		WHERE pid = ? RETURNING attempts`, pid).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("store: password reset attempts: %w", err)
	}
	return attempts, nil
}

func (r *passwordResetRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := affected(r.a.exec(ctx, `DELETE FROM password_reset_requests WHERE expires_at <= ?`, toMillis(now)))
	if err != nil {
		return 0, fmt.Errorf("store: reap password resets: %w", err)
	}
	return n, nil
}
