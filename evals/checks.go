/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evals

import (
	"fmt"
	"strings"
)

// Graded reports the final score, scaled to [0, 1], with the selected sample's reasoning.
func Graded() Check {
	return func(o Observer, v *Verdict) {
		reasoning := ""
		if v.Result.Selected != nil {
			reasoning = v.Result.Selected.Reasoning
		}
		o.Grade(v.Result.FinalScore/100, reasoning)
	}
}

// Passing fails when the verdict did not pass.
func Passing() Check {
	return func(o Observer, v *Verdict) {
		if !v.Result.Passed {
			o.Fail(fmt.Sprintf("%s: score %.1f is below threshold %.1f", v.TestName, v.Result.FinalScore, v.Threshold))
		}
	}
}

// MinScore fails when the final score is below minimum.
func MinScore(minimum float64) Check {
	return func(o Observer, v *Verdict) {
		if got := v.Result.FinalScore; got < minimum {
			o.Fail(fmt.Sprintf("score: got = %.1f, wanted >= %.1f", got, minimum))
		}
	}
}

// MaxVariance fails when the samples vary by more than limit percent.
func MaxVariance(limit float64) Check {
	return func(o Observer, v *Verdict) {
		if got := v.Result.Variance; got > limit {
			o.Fail(fmt.Sprintf("variance: got = %.1f%%, wanted <= %.1f%%", got, limit))
		}
	}
}

// Consistent logs the raw scores when the checker raised a consistency warning.
func Consistent() Check {
	return func(o Observer, v *Verdict) {
		if !v.Result.ConsistencyWarning {
			return
		}
		raw := make([]string, 0, len(v.Result.Samples))
		for _, s := range v.Result.Samples {
			raw = append(raw, fmt.Sprintf("%.1f", s.Score))
		}
		o.Log(fmt.Sprintf("inconsistent judge scores [%s], variance %.1f%%", strings.Join(raw, ", "), v.Result.Variance))
	}
}

// EvidenceFound fails when the selected sample cites evidence missing from
// the response and logs similarity warnings.
func EvidenceFound() Check {
	return func(o Observer, v *Verdict) {
		sel := v.Result.Selected
		if sel == nil || sel.Evidence == nil {
			return
		}
		for _, w := range sel.Evidence.Warnings {
			o.Log(w)
		}
		if len(sel.Evidence.MissingEvidence) > 0 {
			o.Fail(fmt.Sprintf("evidence not found in response: %q", sel.Evidence.MissingEvidence))
		}
	}
}

// DefaultChecks are the checks applied to every verdict by the runner.
func DefaultChecks() []Check {
	return []Check{Graded(), Passing(), Consistent(), EvidenceFound()}
}
