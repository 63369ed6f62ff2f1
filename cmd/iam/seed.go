package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	"github.com/dropDatabas3/iam/internal/observability/logger"
	pw "github.com/dropDatabas3/iam/internal/security/password"
	tokens "github.com/dropDatabas3/iam/internal/security/token"
)

type seedOptions struct {
	appName     string
	domain      string
	callbackURL string
	clientID    string
	secret      string

	email     string
	password  string
	firstName string
	lastName  string

	role       string
	permission string
}

func newSeedCmd(g *globals) *cobra.Command {
	o := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Crea una aplicación y un usuario admin de ejemplo",
		Long: `Crea (si no existen) una aplicación OAuth2 y un usuario activo con un
permiso sobre esa aplicación. Imprime client_id y secret para configurar el
cliente. Correrlo dos veces no duplica nada.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := waitCtx(cmd.Context())
			defer stop()

			if ok, reasons := pw.DefaultPolicy.Validate(o.password); !ok {
				return fmt.Errorf("--password: %s", strings.Join(reasons, "; "))
			}
			if o.callbackURL == "" {
				o.callbackURL = strings.TrimRight(g.cfg.Auth.AppURL, "/") + "/api/auth/callback"
			}
			if o.domain == "" {
				o.domain = g.cfg.Auth.AppURL
			}

			st, err := openMigrated(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			return st.WithTx(ctx, func(tx repository.DataAccess) error {
				return seed(ctx, tx, &o)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.appName, "app-name", "IAM Dashboard", "Nombre de la aplicación")
	f.StringVar(&o.domain, "domain", "", "Domain/issuer de la aplicación (default: APP_URL)")
	f.StringVar(&o.callbackURL, "callback-url", "", "Callback registrada (default: APP_URL/api/auth/callback)")
	f.StringVar(&o.clientID, "client-id", "", "client_id fijo (default: uuid nuevo)")
	f.StringVar(&o.secret, "secret", "", "secret fijo (default: aleatorio)")
	f.StringVar(&o.email, "email", "admin@example.com", "Email del usuario")
	f.StringVar(&o.password, "password", "", "Password del usuario")
	f.StringVar(&o.firstName, "first-name", "Admin", "Nombre")
	f.StringVar(&o.lastName, "last-name", "User", "Apellido")
	f.StringVar(&o.role, "role", "admin", "Rol a otorgar")
	f.StringVar(&o.permission, "permission", "iam:admin", "Permiso a otorgar")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func seed(ctx context.Context, dal repository.DataAccess, o *seedOptions) error {
	log := logger.From(ctx).With(logger.Component("seed"))

	var app *repository.Application
	if o.clientID != "" {
		a, err := dal.Applications().GetByClientID(ctx, o.clientID)
		if err != nil && !repository.IsNotFound(err) {
			return err
		}
		app = a
	}
	if app == nil {
		if o.clientID == "" {
			o.clientID = tokens.NewKey()
		}
		if o.secret == "" {
			s, err := tokens.GenerateOpaqueToken(32)
			if err != nil {
				return err
			}
			o.secret = s
		}
		id, err := dal.Applications().Create(ctx, repository.CreateApplicationInput{
			Name:        o.appName,
			Type:        "web",
			Domain:      o.domain,
			ClientID:    o.clientID,
			SecretID:    o.secret,
			HomeURL:     o.domain,
			CallbackURL: o.callbackURL,
		})
		if err != nil {
			return fmt.Errorf("create application: %w", err)
		}
		app = &repository.Application{ID: id, ClientID: o.clientID, SecretID: o.secret}
		log.Info("application created", logger.ClientID(o.clientID))
	}

	u, err := dal.Users().GetByEmail(ctx, o.email)
	if err != nil && !repository.IsNotFound(err) {
		return err
	}
	var userID int64
	if u == nil {
		hash, err := pw.Hash(o.password)
		if err != nil {
			return err
		}
		userID, err = dal.Users().Create(ctx, repository.CreateUserInput{
			FirstName:    o.firstName,
			LastName:     o.lastName,
			Email:        o.email,
			PasswordHash: hash,
			IsActive:     true,
			IsAdmin:      true,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		log.Info("user created", logger.UserID(userID))
	} else {
		userID = u.ID
	}

	if err := dal.Users().GrantPermission(ctx, userID, app.ID, o.role, o.permission); err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}

	fmt.Printf("client_id=%s\n", app.ClientID)
	fmt.Printf("secret=%s\n", app.SecretID)
	fmt.Printf("user=%s (id %d)\n", o.email, userID)
	return nil
}
