package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	pw "github.com/dropDatabas3/iam/internal/security/password"
	"github.com/dropDatabas3/iam/internal/store"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, store.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "seed.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, err = st.Migrate(ctx)
	require.NoError(t, err)

	o := seedOptions{
		appName: "Dashboard", domain: "https://iam.test", callbackURL: "https://iam.test/api/auth/callback",
		clientID: "6f1c7c1e-8a8e-4d0b-9a3f-0c5f3a3c9b11", secret: "s3cret",
		email: "admin@example.com", password: "changeme", firstName: "Admin", lastName: "User",
		role: "admin", permission: "iam:admin",
	}
	for i := 0; i < 2; i++ {
		opts := o
		require.NoError(t, st.WithTx(ctx, func(tx repository.DataAccess) error { return seed(ctx, tx, &opts) }))
	}

	app, err := st.Applications().GetByClientID(ctx, o.clientID)
	require.NoError(t, err)
	require.Equal(t, "s3cret", app.SecretID)

	u, err := st.Users().GetActiveByEmail(ctx, o.email)
	require.NoError(t, err)
	require.NoError(t, pw.Verify(u.PasswordHash, "changeme"))

	perms, err := st.Users().ResolvePermissions(ctx, u.ID, app.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"iam:admin"}, perms)
}
