package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	predictionsTotal  *prometheus.CounterVec
	reportDuration    *prometheus.HistogramVec
	cbState           *prometheus.GaugeVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		predictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crop_predictions_total",
			Help: "Total prediction requests by outcome.",
		}, []string{"outcome"}),
		reportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crop_report_duration_seconds",
			Help:    "Histogram of analytics report computation time by report.",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.predictionsTotal,
		m.reportDuration,
		m.cbState,
	)

	m.cbState.WithLabelValues("mlservice").Set(0)

	return m
}

// Middleware records request counts and durations per matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		route := c.Route().Path
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the registry in the Prometheus exposition format. A nil
// receiver serves 404.
func (m *Metrics) Handler() fiber.Handler {
	if m == nil {
		return func(c *fiber.Ctx) error { return fiber.ErrNotFound }
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Prediction counts a prediction request with the given outcome.
func (m *Metrics) Prediction(outcome string) {
	if m == nil {
		return
	}
	m.predictionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveReport records how long a report took to compute.
func (m *Metrics) ObserveReport(report string, since time.Time) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(report).Observe(time.Since(since).Seconds())
}

// BreakerStateChanged matches the gobreaker OnStateChange signature.
func (m *Metrics) BreakerStateChanged(name string, _, to gobreaker.State) {
	if m == nil {
		return
	}
	m.cbState.WithLabelValues(name).Set(float64(to))
}
