package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// geocoding service.
type Metrics struct {
	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: provider, operation={search,reverse}, outcome={success,empty,error,cancelled}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: provider, operation
	SearchSuperseded   prometheus.Counter

	// Analytics publisher metrics.
	AnalyticsPublished prometheus.Counter
	AnalyticsDropped   prometheus.Counter
	AnalyticsQueue     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoding",
			Name:      "requests_total",
			Help:      "Geocoding operations by provider, operation, and outcome.",
		}, []string{"provider", "operation", "outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "geocoding",
			Name:      "api_duration_seconds",
			Help:      "Upstream provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider", "operation"}),
		SearchSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoding",
			Name:      "search_superseded_total",
			Help:      "Forward searches cancelled because a newer search replaced them.",
		}),
		AnalyticsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoding",
			Name:      "analytics_published_total",
			Help:      "Activity events successfully written to the analytics topic.",
		}),
		AnalyticsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoding",
			Name:      "analytics_dropped_total",
			Help:      "Activity events dropped because the queue was full or publishing failed.",
		}),
		AnalyticsQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geocoding",
			Name:      "analytics_queue_depth",
			Help:      "Activity events buffered and awaiting a flush.",
		}),
	}

	prometheus.MustRegister(
		m.GeocodeRequests,
		m.GeocodeAPIDuration,
		m.SearchSuperseded,
		m.AnalyticsPublished,
		m.AnalyticsDropped,
		m.AnalyticsQueue,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoding", Name: "requests_total"}, []string{"provider", "operation", "outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "geocoding", Name: "api_duration_seconds"}, []string{"provider", "operation"}),
		SearchSuperseded:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geocoding", Name: "search_superseded_total"}),
		AnalyticsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geocoding", Name: "analytics_published_total"}),
		AnalyticsDropped:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geocoding", Name: "analytics_dropped_total"}),
		AnalyticsQueue:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "geocoding", Name: "analytics_queue_depth"}),
	}
}
