package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/iam/internal/cache"
	"github.com/dropDatabas3/iam/internal/domain/repository"
	"github.com/dropDatabas3/iam/internal/observability/logger"
	"golang.org/x/sync/singleflight"
)

// CachedApplications envuelve un ApplicationRepository con lectura a través
// de cache. Las lecturas concurrentes del mismo client_id se colapsan en una
// sola query.
type CachedApplications struct {
	next  repository.ApplicationRepository
	cache cache.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedApplications crea el wrapper. ttl 0 usa el TTL por defecto del cache.
func NewCachedApplications(next repository.ApplicationRepository, c cache.Client, ttl time.Duration) *CachedApplications {
	return &CachedApplications{next: next, cache: c, ttl: ttl}
}

func applicationCacheKey(clientID string) string { return "app:" + clientID }

func (c *CachedApplications) GetByClientID(ctx context.Context, clientID string) (*repository.Application, error) {
	key := applicationCacheKey(clientID)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var app repository.Application
		if json.Unmarshal([]byte(raw), &app) == nil {
			return &app, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		app, err := c.next.GetByClientID(ctx, clientID)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(app); err == nil {
			if err := c.cache.Set(ctx, key, string(b), c.ttl); err != nil {
				logger.From(ctx).Warn("application cache set failed",
					logger.Layer("store"), logger.ClientID(clientID), logger.Err(err))
			}
		}
		return app, nil
	})
	if err != nil {
		return nil, err
	}
	app := *v.(*repository.Application)
	return &app, nil
}

func (c *CachedApplications) Create(ctx context.Context, in repository.CreateApplicationInput) (int64, error) {
	id, err := c.next.Create(ctx, in)
	if err == nil && in.ClientID != "" {
		_ = c.cache.Delete(ctx, applicationCacheKey(in.ClientID))
	}
	return id, err
}

// Invalidate descarta la entrada de un client_id.
func (c *CachedApplications) Invalidate(ctx context.Context, clientID string) error {
	return c.cache.Delete(ctx, applicationCacheKey(clientID))
}
