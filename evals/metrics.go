/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evals

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_evaluations_total",
			Help: "Total number of judged test verdicts",
		},
		[]string{"namespace"},
	)

	failureCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_evaluation_failures_total",
			Help: "Total number of failed verdict checks",
		},
		[]string{"namespace"},
	)

	gradeGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "judge_evaluation_grade",
			Help: "Most recent verdict grade (0.0-1.0)",
		},
		[]string{"namespace"},
	)
)

// MetricsObserver exports verdicts as Prometheus series labeled by namespace.
type MetricsObserver struct {
	namespace string
	count     atomic.Int64

	evalCounter prometheus.Counter
	failCounter prometheus.Counter
	gradeGauge  prometheus.Gauge
}

var _ Observer = (*MetricsObserver)(nil)

// NewMetricsObserver creates an observer for namespace. It can be used
// directly as a NamespacedObserver factory.
func NewMetricsObserver(namespace string) *MetricsObserver {
	labels := prometheus.Labels{"namespace": namespace}
	return &MetricsObserver{
		namespace:   namespace,
		evalCounter: evaluationCounter.With(labels),
		failCounter: failureCounter.With(labels),
		gradeGauge:  gradeGauge.With(labels),
	}
}

// Increment implements Observer.
func (m *MetricsObserver) Increment() {
	m.count.Add(1)
	m.evalCounter.Inc()
}

// Fail implements Observer.
func (m *MetricsObserver) Fail(string) {
	m.failCounter.Inc()
}

// Grade implements Observer.
func (m *MetricsObserver) Grade(score float64, _ string) {
	m.gradeGauge.Set(score)
}

// Log implements Observer. Messages are not exported.
func (m *MetricsObserver) Log(string) {}

// Total implements Observer.
func (m *MetricsObserver) Total() int64 {
	return m.count.Load()
}
