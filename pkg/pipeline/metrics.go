// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsPipeline holds Prometheus metrics for the pipeline phases.
type metricsPipeline struct {
	once sync.Once

	runs     *prometheus.CounterVec
	phaseDur *prometheus.HistogramVec

	occurrences prometheus.Counter
	unresolved  prometheus.Counter
}

var pipeMetrics metricsPipeline

func (m *metricsPipeline) init() {
	m.once.Do(func() {
		m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdtex_pipeline_runs_total",
			Help: "Pipeline runs, labeled by final phase",
		}, []string{"phase"})
		m.phaseDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdtex_pipeline_phase_seconds",
			Help:    "Duration per pipeline phase",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"phase"})
		m.occurrences = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdtex_pipeline_occurrences_total",
			Help: "Citation occurrences extracted",
		})
		m.unresolved = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdtex_pipeline_unresolved_total",
			Help: "Occurrences still unresolved after matching and auto-add",
		})

		prometheus.MustRegister(m.runs, m.phaseDur, m.occurrences, m.unresolved)
	})
}

// record helpers - used by the orchestrator for metrics tracking
func recordRun(finalPhase string) {
	pipeMetrics.init()
	pipeMetrics.runs.WithLabelValues(finalPhase).Inc()
}

func recordPhase(phase string, d time.Duration) {
	pipeMetrics.init()
	pipeMetrics.phaseDur.WithLabelValues(phase).Observe(d.Seconds())
}

func recordOccurrences(n int) {
	pipeMetrics.init()
	pipeMetrics.occurrences.Add(float64(n))
}

func recordUnresolved(n int) {
	pipeMetrics.init()
	pipeMetrics.unresolved.Add(float64(n))
}
