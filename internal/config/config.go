// Package config carga la configuración del IAM: config.yaml (opcional) +
// overrides por variables de entorno.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
		Name     string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr               string        `yaml:"addr"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
		// TrustedProxies son IPs o CIDRs cuyos X-Forwarded-For / X-Real-IP se
		// respetan. Vacío = se usa siempre la IP del socket.
		TrustedProxies []string `yaml:"trusted_proxies"`
		ReadTimeout        time.Duration `yaml:"read_timeout"`
		WriteTimeout       time.Duration `yaml:"write_timeout"`
		RequestTimeout     time.Duration `yaml:"request_timeout"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// sqlite | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
		// ConnectTimeout acota los reintentos de conexión al arrancar.
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind       string        `yaml:"kind"`
		DefaultTTL time.Duration `yaml:"default_ttl"`
		Redis      struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"login"`
		Token struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"token"`
		Forgot struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"forgot"`
	} `yaml:"rate"`

	Auth struct {
		// AppURL es el front del IAM (/login, /oauth-error, /password-reset...).
		AppURL                string `yaml:"app_url"`
		PostLoginRedirectURL  string `yaml:"post_login_redirect_url"`
		PostLogoutRedirectURL string `yaml:"post_logout_redirect_url"`

		// Aplicación propia del IAM (el dashboard es un cliente más).
		SelfClientID     string `yaml:"self_client_id"`
		SelfClientSecret string `yaml:"self_client_secret"`
		SelfCallbackURL  string `yaml:"self_callback_url"`

		ResetTTL       time.Duration `yaml:"reset_ttl"`
		AuthRequestTTL time.Duration `yaml:"auth_request_ttl"`
		// ApplicationCacheTTL = 0 desactiva el cache de aplicaciones.
		ApplicationCacheTTL time.Duration `yaml:"application_cache_ttl"`

		Cookies struct {
			Secure   bool   `yaml:"secure"`
			Domain   string `yaml:"domain"`
			SameSite string `yaml:"samesite"`
		} `yaml:"cookies"`
	} `yaml:"auth"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"` // auto|starttls|ssl|none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`

	Reaper struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"reaper"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Load lee path (si existe), completa defaults y aplica overrides de entorno.
// Un path vacío o inexistente no es error: se arranca sólo con env + defaults.
func Load(path string) (*Config, error) {
	var c Config
	// defaults que yaml no puede expresar con el zero value
	c.Rate.Enabled = true
	c.Reaper.Enabled = true
	c.Metrics.Enabled = true

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.defaults()
	return &c, c.Validate()
}

func (c *Config) defaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.Name == "" {
		c.App.Name = "iam"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "iam.db"
	}
	if c.Storage.ConnectTimeout == 0 {
		c.Storage.ConnectTimeout = 30 * time.Second
	}

	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = 2 * time.Minute
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "iam:"
	}

	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == 0 {
		c.Rate.Login.Window = time.Minute
	}
	if c.Rate.Token.Limit == 0 {
		c.Rate.Token.Limit = 60
	}
	if c.Rate.Token.Window == 0 {
		c.Rate.Token.Window = time.Minute
	}
	if c.Rate.Forgot.Limit == 0 {
		c.Rate.Forgot.Limit = 5
	}
	if c.Rate.Forgot.Window == 0 {
		c.Rate.Forgot.Window = 10 * time.Minute
	}

	if c.Auth.AppURL == "" {
		c.Auth.AppURL = "http://localhost:8080"
	}
	c.Auth.AppURL = strings.TrimRight(c.Auth.AppURL, "/")
	if c.Auth.SelfCallbackURL == "" {
		c.Auth.SelfCallbackURL = c.Auth.AppURL + "/api/auth/callback"
	}
	if c.Auth.PostLoginRedirectURL == "" {
		c.Auth.PostLoginRedirectURL = c.Auth.AppURL + "/"
	}
	if c.Auth.PostLogoutRedirectURL == "" {
		c.Auth.PostLogoutRedirectURL = c.Auth.AppURL + "/"
	}
	if c.Auth.ResetTTL == 0 {
		c.Auth.ResetTTL = 15 * time.Minute
	}
	if c.Auth.AuthRequestTTL == 0 {
		c.Auth.AuthRequestTTL = time.Hour
	}
	if c.Auth.Cookies.SameSite == "" {
		c.Auth.Cookies.SameSite = "lax"
	}
	// en prod las cookies siempre viajan por https
	if c.IsProd() {
		c.Auth.Cookies.Secure = true
	}

	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}

	if c.Reaper.Interval == 0 {
		c.Reaper.Interval = 5 * time.Minute
	}
}

// IsProd indica si corre en producción.
func (c *Config) IsProd() bool { return c.App.Env == "prod" || c.App.Env == "production" }

// Validate chequea los valores que no tienen default razonable.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return errors.New("config: storage.dsn is required")
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return errors.New("config: cache.redis.addr is required when cache.kind=redis")
		}
	default:
		return fmt.Errorf("config: unsupported cache kind %q", c.Cache.Kind)
	}
	if (c.Auth.SelfClientID == "") != (c.Auth.SelfClientSecret == "") {
		return errors.New("config: auth.self_client_id and auth.self_client_secret go together")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyPrefixes parsea server.trusted_proxies; una IP suelta vale
// como prefijo de host (/32 o /128).
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.Server.TrustedProxies))
	for _, raw := range c.Server.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("config: server.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		ip, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("config: server.trusted_proxies: %w", err)
		}
		ip = ip.Unmap()
		out = append(out, netip.PrefixFrom(ip, ip.BitLen()))
	}
	return out, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if v, ok := getEnvStr(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := getEnvDur(key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := getEnvBool(key); ok {
			*dst = v
		}
	}

	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	str("LOG_LEVEL", &c.App.LogLevel)

	// SERVER
	str("SERVER_ADDR", &c.Server.Addr)
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvCSV("SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}
	dur("SERVER_REQUEST_TIMEOUT", &c.Server.RequestTimeout)

	// STORAGE
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_DSN", &c.Storage.DSN)
	if v, ok := getEnvInt("STORAGE_MAX_CONNS"); ok {
		c.Storage.MaxConns = int32(v)
	}

	// CACHE
	str("CACHE_KIND", &c.Cache.Kind)
	str("REDIS_ADDR", &c.Cache.Redis.Addr)
	str("REDIS_PASSWORD", &c.Cache.Redis.Password)
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	str("REDIS_PREFIX", &c.Cache.Redis.Prefix)

	// RATE
	boolean("RATE_ENABLED", &c.Rate.Enabled)

	// AUTH
	str("APP_URL", &c.Auth.AppURL)
	str("POST_LOGIN_REDIRECT_URL", &c.Auth.PostLoginRedirectURL)
	str("POST_LOGOUT_REDIRECT_URL", &c.Auth.PostLogoutRedirectURL)
	str("SELF_CLIENT_ID", &c.Auth.SelfClientID)
	str("SELF_CLIENT_SECRET", &c.Auth.SelfClientSecret)
	str("SELF_CALLBACK_URL", &c.Auth.SelfCallbackURL)
	dur("AUTH_RESET_TTL", &c.Auth.ResetTTL)
	dur("AUTH_REQUEST_TTL", &c.Auth.AuthRequestTTL)
	dur("AUTH_APPLICATION_CACHE_TTL", &c.Auth.ApplicationCacheTTL)
	boolean("AUTH_COOKIES_SECURE", &c.Auth.Cookies.Secure)
	str("AUTH_COOKIES_DOMAIN", &c.Auth.Cookies.Domain)

	// SMTP
	str("SMTP_HOST", &c.SMTP.Host)
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	str("SMTP_USERNAME", &c.SMTP.Username)
	str("SMTP_PASSWORD", &c.SMTP.Password)
	str("SMTP_FROM", &c.SMTP.From)
	str("SMTP_TLS", &c.SMTP.TLS)
	boolean("SMTP_INSECURE_SKIP_VERIFY", &c.SMTP.InsecureSkipVerify)

	// REAPER / METRICS
	boolean("REAPER_ENABLED", &c.Reaper.Enabled)
	dur("REAPER_INTERVAL", &c.Reaper.Interval)
	boolean("METRICS_ENABLED", &c.Metrics.Enabled)
}
