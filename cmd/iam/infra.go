package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/dropDatabas3/iam/internal/config"
	"github.com/dropDatabas3/iam/internal/observability/logger"
	"github.com/dropDatabas3/iam/internal/store"
)

// openStore reintenta con backoff exponencial hasta Storage.ConnectTimeout:
// en docker-compose la base suele arrancar después que el servicio.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	log := logger.From(ctx).With(logger.Component("store"))

	op := func() (*store.Store, error) {
		st, err := store.Open(ctx, store.Config{
			Driver:   cfg.Storage.Driver,
			DSN:      cfg.Storage.DSN,
			MaxConns: cfg.Storage.MaxConns,
		})
		if err != nil {
			log.Warn("store not ready, retrying", logger.Err(err))
			return nil, err
		}
		return st, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 250 * time.Millisecond
	eb.MaxInterval = 5 * time.Second

	maxElapsed := cfg.Storage.ConnectTimeout
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}

	st, err := backoff.Retry(ctx, op, backoff.WithBackOff(eb), backoff.WithMaxElapsedTime(maxElapsed))
	if err != nil {
		return nil, fmt.Errorf("open store (%s): %w", cfg.Storage.Driver, err)
	}
	log.Info("store connected", logger.String("driver", cfg.Storage.Driver))
	return st, nil
}

// openMigrated abre la base y aplica las migraciones pendientes.
func openMigrated(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	n, err := st.Migrate(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if n > 0 {
		logger.From(ctx).Info("migrations applied", logger.Count(n))
	}
	return st, nil
}
