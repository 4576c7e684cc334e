// Package metrics exposes Prometheus collectors for lifecycle transitions
// and HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"tombstone/internal/softdelete"
)

const namespace = "tombstone"

var _ softdelete.Recorder = (*Collector)(nil)

// Collector is a prometheus.Collector counting lifecycle transitions and
// timing API requests.
type Collector struct {
	transitions     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Lifecycle transitions by entity type, event and outcome.",
			}, []string{"entity", "event", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "path", "status"},
		),
		requestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_errors_total",
				Help:      "HTTP responses with status 400 or above.",
			}, []string{"method", "path", "status"},
		),
	}
}

// Transition implements softdelete.Recorder.
func (c *Collector) Transition(entityType string, event softdelete.Event, outcome softdelete.Outcome) {
	c.transitions.WithLabelValues(entityType, string(event), string(outcome)).Inc()
}

// Middleware records request duration and error counts per route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(ctx.Writer.Status())
		c.requestDuration.WithLabelValues(ctx.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
		if ctx.Writer.Status() >= 400 {
			c.requestErrors.WithLabelValues(ctx.Request.Method, path, status).Inc()
		}
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.transitions.Describe(ch)
	c.requestDuration.Describe(ch)
	c.requestErrors.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.transitions.Collect(ch)
	c.requestDuration.Collect(ch)
	c.requestErrors.Collect(ch)
}
