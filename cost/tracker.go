/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package cost accumulates judge spend across calls and checks it against a
// budget.
package cost

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"chainguard.dev/judgeval/pricing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var spendGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "judge_spend_dollars",
		Help: "Cumulative judge spend in the current measurement window",
	},
	[]string{"tracker"},
)

// ModelSpend is the usage attributed to one model.
type ModelSpend struct {
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Tracker is a running spend total. It is safe for concurrent use.
type Tracker struct {
	prices pricing.Table
	budget float64
	gauge  prometheus.Gauge

	mu      sync.Mutex
	total   float64
	calls   int
	byModel map[string]*ModelSpend
}

// New returns a Tracker pricing calls from prices. A budget of zero or less
// means unlimited. name labels the exported spend gauge.
func New(name string, prices pricing.Table, budget float64) *Tracker {
	if name == "" {
		name = "default"
	}
	return &Tracker{
		prices:  prices,
		budget:  budget,
		gauge:   spendGauge.With(prometheus.Labels{"tracker": name}),
		byModel: make(map[string]*ModelSpend),
	}
}

// Record adds one call's usage and returns its cost. Models missing from the
// price table are counted at zero cost; negative token counts are treated as zero.
func (t *Tracker) Record(model string, inputTokens, outputTokens int64) float64 {
	c, _ := t.prices.Cost(model, inputTokens, outputTokens)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += c
	t.calls++
	ms, ok := t.byModel[model]
	if !ok {
		ms = &ModelSpend{}
		t.byModel[model] = ms
	}
	ms.Calls++
	ms.InputTokens += max(inputTokens, 0)
	ms.OutputTokens += max(outputTokens, 0)
	ms.Cost += c
	t.gauge.Set(t.total)
	return c
}

// OverBudget reports whether the running total exceeds the budget.
func (t *Tracker) OverBudget() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget > 0 && t.total > t.budget
}

// Budget returns the configured ceiling.
func (t *Tracker) Budget() float64 { return t.budget }

// Total returns the running total.
func (t *Tracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Calls returns the number of recorded calls.
func (t *Tracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// ByModel returns a copy of the per-model breakdown.
func (t *Tracker) ByModel() map[string]ModelSpend {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]ModelSpend, len(t.byModel))
	for model, ms := range t.byModel {
		out[model] = *ms
	}
	return out
}

// Reset starts a new measurement window.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = 0
	t.calls = 0
	t.byModel = make(map[string]*ModelSpend)
	t.gauge.Set(0)
}

// Summary renders the cumulative spend for humans.
func (t *Tracker) Summary() string {
	byModel := t.ByModel()

	t.mu.Lock()
	total, calls := t.total, t.calls
	t.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Judge cost: $%.4f across %d calls", total, calls))
	if t.budget > 0 {
		sb.WriteString(fmt.Sprintf(" (budget $%.2f, %.1f%% used)", t.budget, total/t.budget*100))
	}

	models := make([]string, 0, len(byModel))
	for model := range byModel {
		models = append(models, model)
	}
	sort.Strings(models)
	for _, model := range models {
		ms := byModel[model]
		sb.WriteString(fmt.Sprintf("\n  %s: %d calls, %d input / %d output tokens, $%.4f",
			model, ms.Calls, ms.InputTokens, ms.OutputTokens, ms.Cost))
	}
	return sb.String()
}
