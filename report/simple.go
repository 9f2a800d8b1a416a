/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"fmt"

	"chainguard.dev/judgeval/evals"
	"chainguard.dev/sdk/pathtree"
)

// Generator renders an observer tree. threshold is a fraction in [0, 1]
// applied to pass rates and average grades; the boolean reports whether any
// node fell below it.
type Generator func(obs *evals.NamespacedObserver[*evals.ResultCollector], threshold float64) (string, bool)

var _ Generator = Simple

// Simple renders the observer tree node by node with pass rate and average
// grade, listing failures and below-threshold grades under their node.
func Simple(obs *evals.NamespacedObserver[*evals.ResultCollector], threshold float64) (string, bool) {
	tree := pathtree.New()
	tree.PrintOption = pathtree.KeyValueLabel
	hasFailure := false

	obs.Walk(func(name string, collector *evals.ResultCollector) {
		total := collector.Total()
		if total == 0 {
			return
		}
		failures := collector.Failures()
		grades := collector.Grades()

		// Several checks may fail on one verdict.
		passCount := max(total-int64(len(failures)), 0)
		passRate := float64(passCount) / float64(total)

		var avgGrade float64
		var low []evals.Grade
		for _, g := range grades {
			avgGrade += g.Score
			if g.Score < threshold {
				low = append(low, g)
			}
		}
		if len(grades) > 0 {
			avgGrade /= float64(len(grades))
		}

		below := passRate < threshold || (len(grades) > 0 && avgGrade < threshold)
		hasFailure = hasFailure || below

		var value, label string
		if len(grades) > 0 {
			value = fmt.Sprintf("%.1f%% pass, %.2f avg", passRate*100, avgGrade)
		} else {
			value = fmt.Sprintf("%.1f%%", passRate*100)
		}
		label = fmt.Sprintf("(%d/%d)", passCount, total)
		value = flag(below, value)

		if err := tree.Add(name, value, label); err != nil {
			_ = tree.Update(name, value, label)
		}
		for i, failure := range failures {
			_ = tree.Add(fmt.Sprintf("%s/%d", name, i+1), "FAIL", failure)
		}
		for i, g := range low {
			_ = tree.Add(fmt.Sprintf("%s/%d", name, len(failures)+i+1), fmt.Sprintf("%.2f", g.Score), g.Reasoning)
		}
	})

	return tree.String(), hasFailure
}
