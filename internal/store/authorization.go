package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/iam/internal/domain/repository"
)

// ─── AuthorizationRequestRepository ───

type authRequestRepo struct{ a *dal }

func (r *authRequestRepo) Create(ctx context.Context, req repository.AuthorizationRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	_, err := r.a.exec(ctx, `
		INSERT INTO authorization_requests (pid, client_id, response_type, redirect_url, scope, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.PID, req.ClientID, req.ResponseType, req.RedirectURL, req.Scope, req.State, toMillis(req.CreatedAt),
	)
	return mapErr("create authorization request", err)
}

func (r *authRequestRepo) GetByPID(ctx context.Context, pid string) (*repository.AuthorizationRequest, error) {
	var (
		req       repository.AuthorizationRequest
		createdAt int64
	)
	err := r.a.queryRow(ctx, `
		SELECT id, pid, client_id, response_type, redirect_url, scope, state, created_at
		FROM authorization_requests WHERE pid = ?`, pid,
	).Scan(&req.ID, &req.PID, &req.ClientID, &req.ResponseType, &req.RedirectURL, &req.Scope, &req.State, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get authorization request: %w", err)
	}
	req.CreatedAt = fromMillis(createdAt)
	return &req, nil
}

func (r *authRequestRepo) DeleteByPID(ctx context.Context, pid string) (int64, error) {
	n, err := affected(r.a.exec(ctx, `DELETE FROM authorization_requests WHERE pid = ?`, pid))
	if err != nil {
		return 0, fmt.Errorf("store: delete authorization request: %w", err)
	}
	return n, nil
}

func (r *authRequestRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := affected(r.a.exec(ctx, `DELETE FROM authorization_requests WHERE created_at < ?`, toMillis(cutoff)))
	if err != nil {
		return 0, fmt.Errorf("store: reap authorization requests: %w", err)
	}
	return n, nil
}

// ─── AuthorizationCodeRepository ───

type authCodeRepo struct{ a *dal }

func (r *authCodeRepo) Create(ctx context.Context, c repository.AuthorizationCode) error {
	_, err := r.a.exec(ctx, `
		INSERT INTO authorization_codes (code, user_id, client_id, scope, redirect_url, response_type, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Code, c.UserID, c.ClientID, c.Scope, c.RedirectURL, c.ResponseType, toMillis(c.ExpiresAt),
	)
	return mapErr("create authorization code", err)
}

func (r *authCodeRepo) GetByCode(ctx context.Context, code string) (*repository.AuthorizationCode, error) {
	var (
		c         repository.AuthorizationCode
		expiresAt int64
	)
	err := r.a.queryRow(ctx, `
		SELECT id, code, user_id, client_id, scope, redirect_url, response_type, expires_at
		FROM authorization_codes WHERE code = ?`, code,
	).Scan(&c.ID, &c.Code, &c.UserID, &c.ClientID, &c.Scope, &c.RedirectURL, &c.ResponseType, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get authorization code: %w", err)
	}
	c.ExpiresAt = fromMillis(expiresAt)
	return &c, nil
}

func (r *authCodeRepo) DeleteByID(ctx context.Context, id int64) (int64, error) {
	n, err := affected(r.a.exec(ctx, `DELETE FROM authorization_codes WHERE id = ?`, id))
	if err != nil {
		return 0, fmt.Errorf("store: delete authorization code: %w", err)
	}
	return n, nil
}

func (r *authCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := affected(r.a.exec(ctx, `DELETE FROM authorization_codes WHERE expires_at <= ?`, toMillis(now)))
	if err != nil {
		return 0, fmt.Errorf("store: reap authorization codes: %w", err)
	}
	return n, nil
}
