package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/iam/internal/cache"
	"github.com/dropDatabas3/iam/internal/http/server"
	"github.com/dropDatabas3/iam/internal/metrics"
	"github.com/dropDatabas3/iam/internal/observability/logger"
)

func newServeCmd(g *globals) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP (y el reaper si está habilitado)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logger.L()
			ctx = logger.ToContext(ctx, log)

			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if !skipMigrate {
				if _, err := st.Migrate(ctx); err != nil {
					return err
				}
			}

			c, err := cache.New(ctx, cache.Config{
				Driver:     cfg.Cache.Kind,
				Addr:       cfg.Cache.Redis.Addr,
				Password:   cfg.Cache.Redis.Password,
				DB:         cfg.Cache.Redis.DB,
				Prefix:     cfg.Cache.Redis.Prefix,
				DefaultTTL: cfg.Cache.DefaultTTL,
			})
			if err != nil {
				return err
			}
			defer c.Close()

			var m *metrics.Metrics
			if cfg.Metrics.Enabled {
				m = metrics.New()
				if err := m.RegisterDB(st.DB(), st.Pool()); err != nil {
					return err
				}
			}

			app, err := server.Build(cfg, server.Infra{
				Store:   st,
				Cache:   c,
				Metrics: m,
				Version: version,
			})
			if err != nil {
				return err
			}

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return server.Run(egCtx, server.NewHTTPServer(cfg, app.Handler), cfg.Server.ShutdownTimeout)
			})
			if cfg.Reaper.Enabled {
				eg.Go(func() error { return app.Reaper.Run(egCtx) })
			}

			log.Info("iam started",
				logger.String("addr", cfg.Server.Addr),
				logger.String("env", cfg.App.Env),
				logger.String("storage", cfg.Storage.Driver),
				logger.String("cache", cfg.Cache.Kind),
				logger.Bool("reaper", cfg.Reaper.Enabled),
			)
			err = eg.Wait()
			if err != nil && ctx.Err() == nil {
				return err
			}
			log.Info("iam stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "No aplicar migraciones al arrancar")
	return cmd
}

// waitCtx existe para que los comandos one-shot también respeten Ctrl+C.
func waitCtx(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return logger.ToContext(ctx, logger.L()), stop
}
