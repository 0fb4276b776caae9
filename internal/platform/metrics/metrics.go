package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the service exports. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	AuthAttempts        *prometheus.CounterVec
	PatientsCreated     prometheus.Counter
	ReferralsCreated    *prometheus.CounterVec
	ReferralTransitions *prometheus.CounterVec
	FacilityFallbacks   prometheus.Counter
	LocalStoreWrites    *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		AuthAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Authentication attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),

		PatientsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clinical",
			Name:      "patients_created_total",
			Help:      "Total number of patient records created.",
		}),

		ReferralsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clinical",
			Name:      "referrals_created_total",
			Help:      "Referrals created by urgency.",
		}, []string{"urgency"}),

		ReferralTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clinical",
			Name:      "referral_transitions_total",
			Help:      "Referral status transitions by target status.",
		}, []string{"status"}),

		FacilityFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "facility",
			Name:      "fallback_total",
			Help:      "Times the built-in facility dataset replaced an unavailable source.",
		}),

		LocalStoreWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "localstore",
			Name:      "writes_total",
			Help:      "Collection writes by key and change kind.",
		}, []string{"key", "op"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Referral events handed to publishers by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

// Handler exposes the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Auth(operation, outcome string) {
	if c == nil {
		return
	}
	c.AuthAttempts.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) PatientCreated() {
	if c == nil {
		return
	}
	c.PatientsCreated.Inc()
}

func (c *Collector) ReferralCreated(urgency string) {
	if c == nil {
		return
	}
	c.ReferralsCreated.WithLabelValues(urgency).Inc()
}

func (c *Collector) ReferralTransitioned(status string) {
	if c == nil {
		return
	}
	c.ReferralTransitions.WithLabelValues(status).Inc()
}

func (c *Collector) FacilityFallback() {
	if c == nil {
		return
	}
	c.FacilityFallbacks.Inc()
}

func (c *Collector) LocalStoreWrite(key, op string) {
	if c == nil {
		return
	}
	c.LocalStoreWrites.WithLabelValues(key, op).Inc()
}

func (c *Collector) EventPublished(sink, outcome string) {
	if c == nil {
		return
	}
	c.EventsPublished.WithLabelValues(sink, outcome).Inc()
}
