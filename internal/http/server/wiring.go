// Package server arma el grafo de dependencias del IAM (services,
// controllers, router, reaper) a partir de la config y la infraestructura
// ya abierta.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dropDatabas3/iam/internal/cache"
	"github.com/dropDatabas3/iam/internal/config"
	"github.com/dropDatabas3/iam/internal/domain/repository"
	"github.com/dropDatabas3/iam/internal/email"
	healthctrl "github.com/dropDatabas3/iam/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/iam/internal/http/controllers/oauth"
	sessionctrl "github.com/dropDatabas3/iam/internal/http/controllers/session"
	"github.com/dropDatabas3/iam/internal/http/router"
	oauthsvc "github.com/dropDatabas3/iam/internal/http/services/oauth"
	pwsvc "github.com/dropDatabas3/iam/internal/http/services/password"
	jwtx "github.com/dropDatabas3/iam/internal/jwt"
	"github.com/dropDatabas3/iam/internal/metrics"
	"github.com/dropDatabas3/iam/internal/rate"
	"github.com/dropDatabas3/iam/internal/reaper"
	"github.com/dropDatabas3/iam/internal/session"
	"github.com/dropDatabas3/iam/internal/store"
)

// Infra es lo que el caller ya abrió (y cierra).
type Infra struct {
	Store   *store.Store
	Cache   cache.Client // nil = memory
	Sender  email.Sender // nil = SMTP si hay host, si no LogSender
	Metrics *metrics.Metrics
	Version string
	Now     func() time.Time
}

// App es el resultado del wiring.
type App struct {
	Handler  http.Handler
	Reaper   *reaper.Reaper
	Services oauthsvc.Services
	Resets   pwsvc.ResetService
}

// Build conecta todo. No abre conexiones: sólo arma objetos.
func Build(cfg *config.Config, infra Infra) (*App, error) {
	if infra.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if infra.Now == nil {
		infra.Now = time.Now
	}
	if infra.Cache == nil {
		infra.Cache = cache.NewMemory(cfg.Cache.Redis.Prefix, cfg.Cache.DefaultTTL)
	}
	if infra.Sender == nil {
		infra.Sender = senderFor(cfg)
	}

	// lookups de aplicación cacheados
	var apps repository.ApplicationRepository = infra.Store.Applications()
	if cfg.Auth.ApplicationCacheTTL > 0 {
		apps = store.NewCachedApplications(apps, infra.Cache, cfg.Auth.ApplicationCacheTTL)
	}

	var recorder oauthsvc.Recorder = oauthsvc.NoOpRecorder{}
	var reaperObs reaper.Observer
	if infra.Metrics != nil {
		recorder = infra.Metrics
		reaperObs = infra.Metrics
	}

	services := oauthsvc.NewServices(oauthsvc.Deps{
		DAL:          infra.Store,
		Applications: apps,
		Issuer:       &jwtx.Issuer{Now: infra.Now},
		Metrics:      recorder,
		Now:          infra.Now,
	})
	resets := pwsvc.NewResetService(pwsvc.Deps{
		DAL:      infra.Store,
		Mailer:   email.NewMailer(infra.Sender, cfg.App.Name),
		ResetTTL: cfg.Auth.ResetTTL,
		Now:      infra.Now,
	})

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}

	deps := router.Deps{
		OAuth: oauthctrl.NewControllers(services, resets, oauthctrl.Config{
			AppURL:               cfg.Auth.AppURL,
			PostLoginRedirectURL: cfg.Auth.PostLoginRedirectURL,
		}),
		Health: healthctrl.NewHealthController(infra.Version, map[string]healthctrl.Pinger{
			"db":    infra.Store,
			"cache": infra.Cache,
		}),
		Metrics:            infra.Metrics,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RequestTimeout:     cfg.Server.RequestTimeout,
		TrustedProxies:     proxies,
	}

	// el dashboard sólo se monta si la app propia está configurada
	if cfg.Auth.SelfClientID != "" {
		deps.Session = sessionctrl.NewControllers(services, sessionctrl.Config{
			ClientID:             cfg.Auth.SelfClientID,
			ClientSecret:         cfg.Auth.SelfClientSecret,
			CallbackURL:          cfg.Auth.SelfCallbackURL,
			AppURL:               cfg.Auth.AppURL,
			PostLoginRedirectURL: cfg.Auth.PostLoginRedirectURL,
			Cookies: session.Options{
				Secure:   cfg.Auth.Cookies.Secure,
				Domain:   cfg.Auth.Cookies.Domain,
				SameSite: cfg.Auth.Cookies.SameSite,
			},
		})
	}

	if cfg.Rate.Enabled {
		deps.Limiters = limiterPool(infra.Cache, cfg.Cache.Redis.Prefix)
		deps.Limits = router.RateLimits{
			Login:  router.Limit{Limit: cfg.Rate.Login.Limit, Window: cfg.Rate.Login.Window},
			Token:  router.Limit{Limit: cfg.Rate.Token.Limit, Window: cfg.Rate.Token.Window},
			Forgot: router.Limit{Limit: cfg.Rate.Forgot.Limit, Window: cfg.Rate.Forgot.Window},
		}
	}

	return &App{
		Handler: router.New(deps),
		Reaper: reaper.New(infra.Store, reaper.Config{
			Interval:       cfg.Reaper.Interval,
			AuthRequestTTL: cfg.Auth.AuthRequestTTL,
		}, reaperObs),
		Services: services,
		Resets:   resets,
	}, nil
}

// limiterPool usa redis si el cache es redis (límites compartidos entre
// réplicas); si no, token buckets en memoria.
func limiterPool(c cache.Client, prefix string) *rate.Pool {
	if rc, ok := c.(*cache.RedisClient); ok {
		client := rc.Redis()
		return rate.NewPool(func(limit int, window time.Duration) rate.Limiter {
			return rate.NewRedisLimiter(client, fmt.Sprintf("%srl:%d:%s:", prefix, limit, window), limit, window)
		})
	}
	return rate.NewPool(func(limit int, window time.Duration) rate.Limiter {
		return rate.NewMemoryLimiter(limit, window)
	})
}

func senderFor(cfg *config.Config) email.Sender {
	if cfg.SMTP.Host == "" {
		return &email.LogSender{}
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		From:               cfg.SMTP.From,
		Username:           cfg.SMTP.Username,
		Password:           cfg.SMTP.Password,
		TLSMode:            cfg.SMTP.TLS,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
	})
}
