// Package metrics exports sampler activity to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/xtding233/bob-variates/internal/variate"
)

var _ variate.Observer = (*Collector)(nil)

// Collector counts draws and exhausted rejection loops per distribution.
type Collector struct {
	draws     *prometheus.CounterVec
	exhausted *prometheus.CounterVec
	batch     *prometheus.HistogramVec
}

// New creates a Collector and registers it with reg. A nil reg skips
// registration, which is what tests want.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		draws: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bob_variate_draws_total",
				Help: "Number of variates drawn, by distribution.",
			},
			[]string{"dist"},
		),
		exhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bob_variate_retry_limit_total",
				Help: "Number of rejection loops that hit their retry cap, by distribution.",
			},
			[]string{"dist"},
		),
		batch: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bob_request_batch_size",
				Help:    "Number of values requested per API call.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"endpoint"},
		),
	}
	if reg != nil {
		for _, col := range []prometheus.Collector{c.draws, c.exhausted, c.batch} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// Drew implements variate.Observer.
func (c *Collector) Drew(dist string) { c.draws.WithLabelValues(dist).Inc() }

// Exhausted implements variate.Observer.
func (c *Collector) Exhausted(dist string) { c.exhausted.WithLabelValues(dist).Inc() }

// Batch records the size of one API request.
func (c *Collector) Batch(endpoint string, n int) {
	c.batch.WithLabelValues(endpoint).Observe(float64(n))
}
