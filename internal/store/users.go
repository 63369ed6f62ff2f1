package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/iam/internal/domain/repository"
)

// ─── UserRepository ───

type userRepo struct{ a *dal }

const userColumns = `id, first_name, middle_name, last_name, email, password, phone, image,
	is_active, is_admin, is_super_admin, created_at, updated_at`

func (r *userRepo) scanOne(row *sql.Row) (*repository.User, error) {
	var (
		u                    repository.User
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&u.ID, &u.FirstName, &u.MiddleName, &u.LastName, &u.Email, &u.PasswordHash, &u.Phone, &u.Image,
		&u.IsActive, &u.IsAdmin, &u.IsSuperAdmin, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func (r *userRepo) GetActiveByEmail(ctx context.Context, email string) (*repository.User, error) {
	u, err := r.scanOne(r.a.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND is_active = ?`, email, true))
	if err != nil && !repository.IsNotFound(err) {
		return nil, fmt.Errorf("store: get user by email: %w", err)
	}
	return u, err
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	u, err := r.scanOne(r.a.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil && !repository.IsNotFound(err) {
		return nil, fmt.Errorf("store: get user by email: %w", err)
	}
	return u, err
}

func (r *userRepo) GetByID(ctx context.Context, id int64, withLabels bool) (*repository.User, error) {
	u, err := r.scanOne(r.a.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	if !withLabels {
		return u, nil
	}

	u.Labels, err = r.stringList(ctx, `
		SELECT l.name FROM labels l
		JOIN users_to_labels ul ON ul.label_id = l.id
		WHERE ul.user_id = ?
		ORDER BY l.name`, id)
	if err != nil {
		return nil, fmt.Errorf("store: user labels: %w", err)
	}
	return u, nil
}

func (r *userRepo) ResolvePermissions(ctx context.Context, userID, applicationID int64) ([]string, error) {
	keys, err := r.stringList(ctx, `
		SELECT DISTINCT p.key FROM permissions p
		JOIN roles_to_permissions rp ON rp.permission_id = p.id
		JOIN users_to_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = ? AND p.application_id = ?
		ORDER BY p.key`, userID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("store: resolve permissions: %w", err)
	}
	return keys, nil
}

func (r *userRepo) stringList(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.a.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *userRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	n, err := affected(r.a.exec(ctx,
		`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`,
		passwordHash, toMillis(time.Now()), userID))
	if err != nil {
		return fmt.Errorf("store: update password: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (int64, error) {
	now := toMillis(time.Now())
	var id int64
	err := r.a.queryRow(ctx, `
		INSERT INTO users (first_name, middle_name, last_name, email, password, phone,
			is_active, is_admin, is_super_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		in.FirstName, in.MiddleName, in.LastName, in.Email, in.PasswordHash, in.Phone,
		in.IsActive, in.IsAdmin, in.IsSuperAdmin, now, now,
	).Scan(&id)
	if err != nil {
		return 0, mapErr("create user", err)
	}

	for _, name := range in.Labels {
		if _, err := r.a.exec(ctx,
			`INSERT INTO labels (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name); err != nil {
			return 0, mapErr("create label", err)
		}
		if _, err := r.a.exec(ctx, `
			INSERT INTO users_to_labels (user_id, label_id)
			SELECT CAST(? AS BIGINT), id FROM labels WHERE name = ?
			ON CONFLICT DO NOTHING`, id, name); err != nil {
			return 0, mapErr("link label", err)
		}
	}
	return id, nil
}

func (r *userRepo) GrantPermission(ctx context.Context, userID, applicationID int64, roleName, permissionKey string) error {
	stmts := []struct {
		op    string
		query string
		args  []any
	}{
		{"upsert permission",
			`INSERT INTO permissions (key, name, application_id) VALUES (?, ?, ?) ON CONFLICT (key, application_id) DO NOTHING`,
			[]any{permissionKey, permissionKey, applicationID}},
		{"upsert role",
			`INSERT INTO roles (name, application_id) VALUES (?, ?) ON CONFLICT (name, application_id) DO NOTHING`,
			[]any{roleName, applicationID}},
		{"link role permission", `
			INSERT INTO roles_to_permissions (role_id, permission_id)
			SELECT r.id, p.id FROM roles r, permissions p
			WHERE r.name = ? AND r.application_id = ? AND p.key = ? AND p.application_id = ?
			ON CONFLICT DO NOTHING`,
			[]any{roleName, applicationID, permissionKey, applicationID}},
		{"link user role", `
			INSERT INTO users_to_roles (user_id, role_id)
			SELECT CAST(? AS BIGINT), id FROM roles WHERE name = ? AND application_id = ?
			ON CONFLICT DO NOTHING`,
			[]any{userID, roleName, applicationID}},
	}
	for _, st := range stmts {
		if _, err := r.a.exec(ctx, st.query, st.args...); err != nil {
			return mapErr(st.op, err)
		}
	}
	return nil
}
