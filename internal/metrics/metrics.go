// Package metrics exposes Prometheus collectors for the reservation
// service.  Collector satisfies scheduler.Observer.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the service metrics.  All methods are safe on a nil
// receiver so components can run without metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Operations    *prometheus.CounterVec
	AutoRejected  prometheus.Counter
	StoreRetries  prometheus.Counter
	Events        *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// New registers the collectors against reg, defaulting to the global
// Prometheus registry when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ops, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_operations_total",
		Help: "Scheduler operations, labeled by operation and outcome (ok or error kind).",
	}, []string{"op", "outcome"}), "reservation_operations_total")
	if err != nil {
		return nil, err
	}
	autoRejected, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservation_auto_rejected_total",
		Help: "Pending reservations rejected because an overlapping reservation was approved.",
	}), "reservation_auto_rejected_total")
	if err != nil {
		return nil, err
	}
	retries, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservation_store_retries_total",
		Help: "Transactions restarted after a deadlock or lock wait timeout.",
	}), "reservation_store_retries_total")
	if err != nil {
		return nil, err
	}
	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_events_total",
		Help: "Reservation events handed to the broker, labeled by outcome (published, dropped, failed).",
	}, []string{"outcome"}), "reservation_events_total")
	if err != nil {
		return nil, err
	}
	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "http_requests_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "route"}), "http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		Operations:    ops,
		AutoRejected:  autoRejected,
		StoreRetries:  retries,
		Events:        events,
		HTTPRequests:  requests,
		HTTPDurations: durations,
	}, nil
}

// ObserveOperation implements scheduler.Observer.
func (c *Collector) ObserveOperation(op, outcome string) {
	if c == nil || c.Operations == nil {
		return
	}
	c.Operations.WithLabelValues(op, outcome).Inc()
}

// ObserveAutoRejected implements scheduler.Observer.
func (c *Collector) ObserveAutoRejected(n int) {
	if c == nil || c.AutoRejected == nil || n <= 0 {
		return
	}
	c.AutoRejected.Add(float64(n))
}

// ObserveStoreRetry has the signature of repository.RetryPolicy.OnRetry.
func (c *Collector) ObserveStoreRetry(int, error) {
	if c == nil || c.StoreRetries == nil {
		return
	}
	c.StoreRetries.Inc()
}

// ObserveEvent counts an event delivery outcome.
func (c *Collector) ObserveEvent(outcome string) {
	if c == nil || c.Events == nil {
		return
	}
	c.Events.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latencies by route template.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if c == nil {
				return err
			}
			status := ctx.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.HTTPDurations.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
