// Package reaper borra periódicamente las filas vencidas: codes, refresh
// tokens, pedidos de reset y authorization requests abandonados.
//
// No hace falta para la correctitud (toda lectura chequea la expiración); sólo
// mantiene las tablas chicas.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/iam/internal/domain/repository"
	"github.com/dropDatabas3/iam/internal/observability/logger"
)

// Observer recibe el resultado de cada barrida (métricas).
type Observer interface {
	ReaperDeleted(table string, n int64)
	ReaperFailed()
}

type noopObserver struct{}

func (noopObserver) ReaperDeleted(string, int64) {}
func (noopObserver) ReaperFailed()               {}

// Config del reaper.
type Config struct {
	Interval time.Duration
	// AuthRequestTTL: requests más viejos que esto se consideran abandonados.
	AuthRequestTTL time.Duration
}

// Result cuenta lo borrado por tabla en una barrida.
type Result struct {
	AuthorizationRequests int64
	AuthorizationCodes    int64
	RefreshTokens         int64
	PasswordResets        int64
}

func (r Result) Total() int64 {
	return r.AuthorizationRequests + r.AuthorizationCodes + r.RefreshTokens + r.PasswordResets
}

type Reaper struct {
	dal      repository.DataAccess
	cfg      Config
	observer Observer
	now      func() time.Time
}

func New(dal repository.DataAccess, cfg Config, obs Observer) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.AuthRequestTTL <= 0 {
		cfg.AuthRequestTTL = time.Hour
	}
	if obs == nil {
		obs = noopObserver{}
	}
	return &Reaper{dal: dal, cfg: cfg, observer: obs, now: time.Now}
}

// Sweep hace una barrida. Sigue con las demás tablas aunque una falle y
// devuelve los errores juntos.
func (r *Reaper) Sweep(ctx context.Context) (Result, error) {
	now := r.now().UTC()
	var (
		res  Result
		errs []error
	)

	step := func(table string, dst *int64, fn func() (int64, error)) {
		n, err := fn()
		if err != nil {
			logger.From(ctx).Warn("reaper table failed", logger.Component("reaper"), logger.Table(table), logger.Err(err))
			errs = append(errs, fmt.Errorf("reaper: %s: %w", table, err))
			return
		}
		*dst = n
		r.observer.ReaperDeleted(table, n)
	}

	step("authorization_codes", &res.AuthorizationCodes, func() (int64, error) {
		return r.dal.AuthorizationCodes().DeleteExpired(ctx, now)
	})
	step("refresh_tokens", &res.RefreshTokens, func() (int64, error) {
		return r.dal.RefreshTokens().DeleteExpired(ctx, now)
	})
	step("password_reset_requests", &res.PasswordResets, func() (int64, error) {
		return r.dal.PasswordResets().DeleteExpired(ctx, now)
	})
	step("authorization_requests", &res.AuthorizationRequests, func() (int64, error) {
		return r.dal.AuthorizationRequests().DeleteOlderThan(ctx, now.Add(-r.cfg.AuthRequestTTL))
	})

	err := errors.Join(errs...)
	if err != nil {
		r.observer.ReaperFailed()
	}
	return res, err
}

// Run barre cada Interval hasta que ctx se cancele. Siempre devuelve nil al
// cancelar, así se puede usar directo en un errgroup.
func (r *Reaper) Run(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Component("reaper"))
	log.Info("reaper started", logger.String("interval", r.cfg.Interval.String()))

	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reaper stopped")
			return nil
		case <-t.C:
			res, err := r.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn("reaper sweep failed", logger.Err(err))
				continue
			}
			if n := res.Total(); n > 0 {
				log.Info("reaper sweep", logger.Int64("deleted", n))
			}
		}
	}
}
