// Package metrics define las métricas Prometheus de bizgate. Vive aparte de
// los paquetes HTTP para que servicios y middlewares las compartan sin ciclos.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resultados de emisión (label "result").
const (
	ResultIssued      = "issued"
	ResultRejected    = "rejected"
	ResultUnavailable = "unavailable"
	ResultError       = "error"

	WritebackOK     = "ok"
	WritebackFailed = "failed"
)

// Metrics agrupa los collectors de un proceso. Un nil *Metrics es válido:
// todos los métodos Record* son no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	HTTPInflight  *prometheus.GaugeVec
	TokensIssued  *prometheus.CounterVec
	Writebacks    *prometheus.CounterVec
	EdgeDecisions *prometheus.CounterVec
}

// New crea y registra los collectors. reg nil usa un registry nuevo (tests);
// en los servidores se pasa prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizgate_http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bizgate_http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bizgate_http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"}),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizgate_token_issued_total",
			Help: "Intentos de emisión de token por clase de tenant y resultado",
		}, []string{"tenant_class", "result"}), // result: issued|rejected|unavailable|error
		Writebacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizgate_token_writeback_total",
			Help: "Persistencia del token emitido en el servicio de dominio",
		}, []string{"result"}),
		EdgeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizgate_edge_decisions_total",
			Help: "Decisiones del filtro de borde",
		}, []string{"decision"}),
	}

	for _, c := range []prometheus.Collector{
		m.HTTPRequests, m.HTTPDuration, m.HTTPInflight,
		m.TokensIssued, m.Writebacks, m.EdgeDecisions,
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler expone /metrics sobre el gatherer de este Metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordIssue(tenantClass, result string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(tenantClass, result).Inc()
}

func (m *Metrics) RecordWriteback(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Writebacks.WithLabelValues(WritebackOK).Inc()
		return
	}
	m.Writebacks.WithLabelValues(WritebackFailed).Inc()
}

func (m *Metrics) RecordEdgeDecision(decision string) {
	if m == nil {
		return
	}
	m.EdgeDecisions.WithLabelValues(decision).Inc()
}

// RegisterPool agrega gauges del pool de Postgres de la account store.
func RegisterPool(reg prometheus.Registerer, pool *pgxpool.Pool) error {
	if pool == nil {
		return nil
	}
	return registerCollector(reg, newPoolCollector(pool))
}

// registerCollector registra el collector ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

type poolCollector struct {
	pool *pgxpool.Pool

	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
}

func newPoolCollector(pool *pgxpool.Pool) *poolCollector {
	return &poolCollector{
		pool:         pool,
		acquiredDesc: prometheus.NewDesc("bizgate_pgxpool_acquired", "Conexiones adquiridas", nil, nil),
		idleDesc:     prometheus.NewDesc("bizgate_pgxpool_idle", "Conexiones inactivas", nil, nil),
		totalDesc:    prometheus.NewDesc("bizgate_pgxpool_total", "Conexiones totales", nil, nil),
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

var (
	uuidSegmentRE  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F-]{4}-[0-9a-fA-F-]{4,}$`)
	hexSegmentRE   = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)
	tokenSegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]{24,}$`)
)

// NormalizePath reemplaza segmentos dinámicos (ids, tokens) por ":param" para
// acotar la cardinalidad del label "path".
func NormalizePath(p string) string {
	clean := strings.SplitN(p, "?", 2)[0]
	var out []string
	for _, seg := range strings.Split(clean, "/") {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			out = append(out, ":param")
		} else {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

func isDynamicSegment(seg string) bool {
	if len(seg) > 48 {
		return true
	}
	if uuidSegmentRE.MatchString(seg) || hexSegmentRE.MatchString(seg) || tokenSegmentRE.MatchString(seg) {
		return true
	}
	if _, err := strconv.Atoi(seg); err == nil {
		return true
	}
	return false
}
