package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

const namespace = "tokvault"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Custody metrics
	Transitions   *prometheus.CounterVec
	Invalidations *prometheus.CounterVec
	PaymentVolume *prometheus.CounterVec
	FeesCollected prometheus.Counter

	// Crank metrics
	CrankRuns          prometheus.Counter
	CrankEvaluations   prometheus.Counter
	CrankInvalidations prometheus.Counter
	CrankErrors        prometheus.Counter

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with the Go and process collectors and
// every application metric registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed token manager transitions by operation and resulting state.",
		}, []string{"operation", "state"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Invalidations by trigger reason and outcome.",
		}, []string{"reason", "outcome"}),
		PaymentVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_volume_total",
			Help:      "Sum of settled payment amounts by operation, in base units.",
		}, []string{"operation"}),
		FeesCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_collected_total",
			Help:      "Sum of maker, taker, seller and buy side fees, in base units.",
		}),
		CrankRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crank",
			Name:      "runs_total",
			Help:      "Completed crank passes.",
		}),
		CrankEvaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crank",
			Name:      "evaluations_total",
			Help:      "Token managers evaluated by the crank.",
		}),
		CrankInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crank",
			Name:      "invalidations_total",
			Help:      "Token managers invalidated or reissued by the crank.",
		}),
		CrankErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crank",
			Name:      "errors_total",
			Help:      "Crank evaluations that failed.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Transitions,
		r.Invalidations,
		r.PaymentVolume,
		r.FeesCollected,
		r.CrankRuns,
		r.CrankEvaluations,
		r.CrankInvalidations,
		r.CrankErrors,
		r.RequestsTotal,
		r.RequestDuration,
	)
	return r
}

// Registerer exposes the underlying registry for other components.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for scraping in tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Observe counts a committed receipt.
func (r *Registry) Observe(rc *domain.Receipt) {
	r.Transitions.WithLabelValues(string(rc.Operation), rc.State.String()).Inc()
	if rc.Trigger != nil {
		r.Invalidations.WithLabelValues(string(rc.Trigger.Reason), string(rc.Outcome)).Inc()
	}
	if rc.Fees != nil {
		r.PaymentVolume.WithLabelValues(string(rc.Operation)).Add(float64(rc.Fees.PaymentAmount))
		r.FeesCollected.Add(float64(rc.Fees.TotalFees))
	}
}

// ObserveRequest records one served HTTP request.
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
