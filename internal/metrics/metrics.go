package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the custody collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	PriceLookups      *prometheus.CounterVec
	Recoveries        *prometheus.CounterVec
	TrackedAssets     prometheus.Gauge
	EventsPublished   *prometheus.CounterVec
	Payouts           *prometheus.CounterVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_operations_total",
				Help: "Total custody operations by outcome.",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "custody_operation_duration_seconds",
				Help:    "Custody operation duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		PriceLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_price_lookups_total",
				Help: "Total price source lookups.",
			},
			[]string{"status"},
		),
		Recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_recoveries_total",
				Help: "Total balance recoveries by outcome.",
			},
			[]string{"status"},
		),
		TrackedAssets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "custody_tracked_assets",
				Help: "Number of distinct assets tracked by the ledger.",
			},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_events_published_total",
				Help: "Total events published to Kafka.",
			},
			[]string{"topic", "status"},
		),
		Payouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custody_payouts_total",
				Help: "Total payout delivery attempts from the outbox.",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.Operations,
		m.OperationDuration,
		m.PriceLookups,
		m.Recoveries,
		m.TrackedAssets,
		m.EventsPublished,
		m.Payouts,
	)
	return m
}

// NewRegistry returns a registry preloaded with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveOperation(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) IncPriceLookup(status string) {
	if m == nil {
		return
	}
	m.PriceLookups.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRecovery(status string) {
	if m == nil {
		return
	}
	m.Recoveries.WithLabelValues(status).Inc()
}

func (m *Metrics) SetTrackedAssets(n int) {
	if m == nil {
		return
	}
	m.TrackedAssets.Set(float64(n))
}

func (m *Metrics) IncEventPublished(topic, status string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(topic, status).Inc()
}

func (m *Metrics) IncPayout(status string) {
	if m == nil {
		return
	}
	m.Payouts.WithLabelValues(status).Inc()
}
