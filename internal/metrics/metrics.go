package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Collector exposes the back office instruments on its own registry.
type Collector struct {
	registry *prometheus.Registry

	ruleMutations   *prometheus.CounterVec
	ruleConflicts   *prometheus.CounterVec
	ruleResolutions *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		ruleMutations: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_rule_mutations_total",
			Help: "Rule create/update/delete operations by family and outcome",
		}, []string{"family", "op", "outcome"}),
		ruleConflicts: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_rule_conflicts_total",
			Help: "Write attempts rejected by the conflict detector",
		}, []string{"family"}),
		ruleResolutions: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_rule_resolutions_total",
			Help: "Rate resolutions by family and outcome (matched, fallback, none)",
		}, []string{"family", "outcome"}),
		httpDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backoffice_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

func (c *Collector) RecordMutation(family, op, outcome string) {
	c.ruleMutations.WithLabelValues(family, op, outcome).Inc()
}

func (c *Collector) RecordConflict(family string) {
	c.ruleConflicts.WithLabelValues(family).Inc()
}

func (c *Collector) RecordResolution(family, outcome string) {
	c.ruleResolutions.WithLabelValues(family, outcome).Inc()
}

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GinMiddleware observes request latency per route.
func GinMiddleware(c *Collector) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unknown"
		}
		c.httpDuration.WithLabelValues(
			route,
			ctx.Request.Method,
			strconv.Itoa(ctx.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// Module wires the collector.
var Module = fx.Module("metrics",
	fx.Provide(NewCollector),
)
