// Package metrics expone las métricas Prometheus del IAM: HTTP, eventos del
// motor OAuth2 (tokens emitidos, replays, logins fallidos), el reaper y los
// pools de base de datos.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "iam"

// Metrics agrupa los collectors registrados en un Registry propio, así los
// tests pueden crear tantos como necesiten sin pisar el global.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInflight *prometheus.GaugeVec

	tokensIssued   *prometheus.CounterVec
	replays        prometheus.Counter
	loginFailures  *prometheus.CounterVec
	reaperDeleted  *prometheus.CounterVec
	reaperFailures prometheus.Counter
	rateLimited    *prometheus.CounterVec
}

// New crea el registry con los collectors de runtime + los del IAM.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método",
		}, []string{"method"}),

		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Token sets emitidos por grant_type",
		}, []string{"grant"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_detected_total",
			Help:      "Refresh tokens presentados después de haber sido rotados",
		}),
		loginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Logins rechazados por motivo",
		}, []string{"reason"}),
		reaperDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_deleted_total",
			Help:      "Filas vencidas borradas por el reaper",
		}, []string{"table"}),
		reaperFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_failures_total",
			Help:      "Barridas del reaper que terminaron con error",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rechazadas por rate limit",
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.httpInflight,
		m.tokensIssued, m.replays, m.loginFailures,
		m.reaperDeleted, m.reaperFailures, m.rateLimited,
	)
	return m
}

// Registry expone el registry (tests y collectors extra).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterDB agrega las estadísticas del *sql.DB (y del pgxpool si lo hay).
func (m *Metrics) RegisterDB(db *sql.DB, pool *pgxpool.Pool) error {
	if db != nil {
		if err := register(m.registry, collectors.NewDBStatsCollector(db, "iam")); err != nil {
			return err
		}
	}
	if pool != nil {
		return register(m.registry, newPoolCollector(pool))
	}
	return nil
}

// ─── eventos del motor OAuth2 ───

func (m *Metrics) TokenIssued(grantType string) { m.tokensIssued.WithLabelValues(grantType).Inc() }
func (m *Metrics) ReplayDetected()              { m.replays.Inc() }
func (m *Metrics) LoginFailed(reason string)    { m.loginFailures.WithLabelValues(reason).Inc() }

// ─── reaper ───

func (m *Metrics) ReaperDeleted(table string, n int64) {
	if n > 0 {
		m.reaperDeleted.WithLabelValues(table).Add(float64(n))
	}
}

func (m *Metrics) ReaperFailed() { m.reaperFailures.Inc() }

// RateLimited cuenta un rechazo del limiter.
func (m *Metrics) RateLimited(route string) { m.rateLimited.WithLabelValues(route).Inc() }

func (m *Metrics) observeHTTP(method, path string, status int, seconds float64) {
	m.httpDuration.WithLabelValues(method, path).Observe(seconds)
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// register ignora duplicados.
func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// poolCollector expone gauges del pgxpool.
type poolCollector struct {
	pool *pgxpool.Pool

	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
}

func newPoolCollector(pool *pgxpool.Pool) *poolCollector {
	return &poolCollector{
		pool:         pool,
		acquiredDesc: prometheus.NewDesc("iam_pgxpool_acquired", "Conexiones adquiridas", nil, nil),
		idleDesc:     prometheus.NewDesc("iam_pgxpool_idle", "Conexiones inactivas", nil, nil),
		totalDesc:    prometheus.NewDesc("iam_pgxpool_total", "Conexiones totales", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	if stat == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
}
