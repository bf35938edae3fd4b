package datasource

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "docbase"

type metrics struct {
	constructions *prometheus.CounterVec
	failures      *prometheus.CounterVec
	hits          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		constructions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client_cache",
			Name:      "constructions_total",
			Help:      "Number of MongoDB clients built, by client key.",
		}, []string{"client"})),
		failures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client_cache",
			Name:      "failures_total",
			Help:      "Number of failed MongoDB client constructions, by client key.",
		}, []string{"client"})),
		hits: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client_cache",
			Name:      "hits_total",
			Help:      "Number of client lookups served by an existing client, by client key.",
		}, []string{"client"})),
		duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "client_cache",
			Name:      "construction_duration_seconds",
			Help:      "Time spent building a MongoDB client.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"client"})),
	}
}

// register registers c on reg, reusing an identical collector that is
// already registered. A nil reg leaves c unregistered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
