// Package metrics exports view and mutation measurements to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "potato"

// Outcomes of a mutation.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Collector records view queries and document mutations.
type Collector struct {
	viewDuration *prometheus.HistogramVec
	viewQueries  *prometheus.CounterVec
	mutations    *prometheus.CounterVec
}

// New registers the collectors with reg, the default registerer when nil.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		viewDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "view_duration_seconds",
				Help:      "Duration of view queries in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"design", "view"},
		),
		viewQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_queries_total",
				Help:      "Total number of view queries by outcome",
			},
			[]string{"design", "view", "outcome"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Total number of document saves and destroys by outcome",
			},
			[]string{"operation", "type", "outcome"},
		),
	}
}

func (c *Collector) ObserveView(design, view string, d time.Duration, err error) {
	c.viewDuration.WithLabelValues(design, view).Observe(d.Seconds())
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.viewQueries.WithLabelValues(design, view, outcome).Inc()
}

func (c *Collector) ObserveMutation(operation, docType, outcome string) {
	c.mutations.WithLabelValues(operation, docType, outcome).Inc()
}
