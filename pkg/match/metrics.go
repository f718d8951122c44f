// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package match

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsMatch holds Prometheus metrics for the match cascade.
type metricsMatch struct {
	once sync.Once

	hits   *prometheus.CounterVec
	misses prometheus.Counter
}

var matchMetrics metricsMatch

func (m *metricsMatch) init() {
	m.once.Do(func() {
		m.hits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdtex_match_hits_total",
			Help: "Occurrences resolved, labeled by cascade strategy",
		}, []string{"strategy"})
		m.misses = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdtex_match_misses_total",
			Help: "Occurrences that no strategy resolved",
		})

		prometheus.MustRegister(m.hits, m.misses)
	})
}

// record helpers - used by the matcher for metrics tracking
func recordMatchHit(strategy string) {
	matchMetrics.init()
	matchMetrics.hits.WithLabelValues(strategy).Inc()
}

func recordMatchMiss() {
	matchMetrics.init()
	matchMetrics.misses.Inc()
}
