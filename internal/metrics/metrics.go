// Package metrics exposes Prometheus metrics for the HTTP API and roadmap
// operations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application on its own
// registry.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec

	stepsCreated    prometheus.Counter
	roadmapsCreated prometheus.Counter
	roadmapsDeleted prometheus.Counter
	stepToggles     prometheus.Counter
}

// NewCollector creates a collector with every metric registered under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Step generator calls by mode and outcome",
		}, []string{"mode", "outcome"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Step generator call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}, []string{"mode"}),
		stepsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_created_total",
			Help:      "Total number of steps created",
		}),
		roadmapsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roadmaps_created_total",
			Help:      "Total number of roadmaps created",
		}),
		roadmapsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roadmaps_deleted_total",
			Help:      "Total number of roadmaps deleted",
		}),
		stepToggles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_toggles_total",
			Help:      "Total number of step completion toggles",
		}),
	}

	c.registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.generations,
		c.generationDuration,
		c.stepsCreated,
		c.roadmapsCreated,
		c.roadmapsDeleted,
		c.stepToggles,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveGeneration records one generator call.
func (c *Collector) ObserveGeneration(mode, outcome string, d time.Duration) {
	c.generations.WithLabelValues(mode, outcome).Inc()
	c.generationDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// StepsCreated adds n created steps.
func (c *Collector) StepsCreated(n int) {
	c.stepsCreated.Add(float64(n))
}

// RoadmapCreated counts a created roadmap.
func (c *Collector) RoadmapCreated() {
	c.roadmapsCreated.Inc()
}

// RoadmapDeleted counts a deleted roadmap.
func (c *Collector) RoadmapDeleted() {
	c.roadmapsDeleted.Inc()
}

// StepToggled counts a completion toggle.
func (c *Collector) StepToggled() {
	c.stepToggles.Inc()
}

// Middleware records request counts and latencies labelled by the matched
// chi route pattern, so path parameters do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
