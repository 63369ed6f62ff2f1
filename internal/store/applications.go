package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/iam/internal/domain/repository"
)

// ─── ApplicationRepository ───

type applicationRepo struct{ a *dal }

const applicationColumns = `id, name, description, type, domain, client_id, secret_id,
	home_url, login_url, logout_url, callback_url,
	id_token_exp, access_token_exp, refresh_token_exp, created_at`

func (r *applicationRepo) GetByClientID(ctx context.Context, clientID string) (*repository.Application, error) {
	var (
		app       repository.Application
		createdAt int64
	)
	err := r.a.queryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE client_id = ?`, clientID,
	).Scan(
		&app.ID, &app.Name, &app.Description, &app.Type, &app.Domain, &app.ClientID, &app.SecretID,
		&app.HomeURL, &app.LoginURL, &app.LogoutURL, &app.CallbackURL,
		&app.IDTokenExp, &app.AccessTokenExp, &app.RefreshTokenExp, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get application: %w", err)
	}
	app.CreatedAt = fromMillis(createdAt)
	return &app, nil
}

func (r *applicationRepo) Create(ctx context.Context, in repository.CreateApplicationInput) (int64, error) {
	if in.IDTokenExp <= 0 {
		in.IDTokenExp = 3600
	}
	if in.AccessTokenExp <= 0 {
		in.AccessTokenExp = 86400
	}
	if in.RefreshTokenExp <= 0 {
		in.RefreshTokenExp = 1296000
	}
	if in.Type == "" {
		in.Type = "web"
	}

	var id int64
	err := r.a.queryRow(ctx, `
		INSERT INTO applications (name, description, type, domain, client_id, secret_id,
			home_url, login_url, logout_url, callback_url,
			id_token_exp, access_token_exp, refresh_token_exp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		in.Name, in.Description, in.Type, in.Domain, in.ClientID, in.SecretID,
		in.HomeURL, in.LoginURL, in.LogoutURL, in.CallbackURL,
		in.IDTokenExp, in.AccessTokenExp, in.RefreshTokenExp, toMillis(time.Now()),
	).Scan(&id)
	if err != nil {
		return 0, mapErr("create application", err)
	}
	return id, nil
}
