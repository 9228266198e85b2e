// Package metrics exposes collector Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spectre"

// Collector holds all collector metrics.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	PageViews        *prometheus.CounterVec
	EventsTotal      *prometheus.CounterVec
	GoalsTotal       prometheus.Counter
	HeatmapRows      *prometheus.CounterVec
	HeatmapDropped   prometheus.Counter
	HeatmapFlushes   *prometheus.CounterVec
	HeatmapFlushTime prometheus.Histogram
	HeatmapPruned    prometheus.Counter
	UnknownSites     prometheus.Counter
}

// New creates a Collector registered on its own registry, with the Go and
// process collectors attached.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates a Collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		PageViews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_views_total",
			Help:      "Page views recorded, by device and bot flag.",
		}, []string{"device", "bot"}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events recorded, by signal name; other events count as custom.",
		}, []string{"name"}),
		GoalsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goal_conversions_total",
			Help:      "Goal conversions recorded.",
		}),
		HeatmapRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heatmap_rows_accepted_total",
			Help:      "Heatmap rows accepted into the write buffer, by type.",
		}, []string{"type"}),
		HeatmapDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heatmap_rows_dropped_total",
			Help:      "Heatmap rows dropped because the write buffer was full.",
		}),
		HeatmapFlushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heatmap_flushes_total",
			Help:      "Heatmap buffer flushes by result.",
		}, []string{"result"}),
		HeatmapFlushTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "heatmap_flush_duration_seconds",
			Help:      "Time spent writing one heatmap batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		HeatmapPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heatmap_rows_pruned_total",
			Help:      "Heatmap rows deleted by retention.",
		}),
		UnknownSites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_site_rejections_total",
			Help:      "Requests rejected for an unregistered site_id.",
		}),
	}
}

// Handler returns the /metrics handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request counts and latency by matched route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.RequestsTotal.WithLabelValues(route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// ObserveHeatmapFlush implements storage.FlushObserver.
func (c *Collector) ObserveHeatmapFlush(_ int, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.HeatmapFlushes.WithLabelValues(result).Inc()
	c.HeatmapFlushTime.Observe(duration.Seconds())
}

// ObservePrune implements retention.Observer.
func (c *Collector) ObservePrune(rows int64) {
	c.HeatmapPruned.Add(float64(rows))
}
