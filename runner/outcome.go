/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runner

import (
	"fmt"

	"chainguard.dev/judgeval/consistency"
)

// Status is the terminal state of one Evaluate call.
type Status string

const (
	// StatusSkipped means no judge was consulted.
	StatusSkipped Status = "skipped"
	// StatusEvaluated means Result holds a verdict. The verdict may be a
	// zero-score stand-in when the judge failed and errors are not skipped.
	StatusEvaluated Status = "evaluated"
	// StatusErrored means the judge failed and SkipOnError was set.
	StatusErrored Status = "errored"
)

// SkipReason explains a StatusSkipped outcome.
type SkipReason string

const (
	SkipSampling    SkipReason = "sampling"
	SkipUnavailable SkipReason = "unavailable"
)

// Outcome is the result of Runner.Evaluate.
type Outcome struct {
	TestName   string     `json:"test_name"`
	Status     Status     `json:"status"`
	SkipReason SkipReason `json:"skip_reason,omitempty"`
	// Err is the judge failure behind an errored, unavailable or degraded outcome.
	Err       error               `json:"-"`
	Result    *consistency.Result `json:"result,omitempty"`
	Threshold float64             `json:"threshold"`
	Critical  bool                `json:"critical,omitempty"`
	// RecordID identifies the persisted record, if a store is attached.
	RecordID string `json:"record_id,omitempty"`
}

// Evaluated reports whether a verdict was produced.
func (o *Outcome) Evaluated() bool {
	return o.Status == StatusEvaluated && o.Result != nil
}

// Passed reports whether a verdict was produced and it passed.
func (o *Outcome) Passed() bool {
	return o.Evaluated() && o.Result.Passed
}

// Cost is the judge spend behind the outcome.
func (o *Outcome) Cost() float64 {
	if o.Result == nil {
		return 0
	}
	return o.Result.Cost()
}

func (o *Outcome) String() string {
	switch o.Status {
	case StatusSkipped:
		return fmt.Sprintf("%s: skipped (%s)", o.TestName, o.SkipReason)
	case StatusErrored:
		return fmt.Sprintf("%s: errored: %v", o.TestName, o.Err)
	}
	verdict := "FAIL"
	if o.Passed() {
		verdict = "PASS"
	}
	return fmt.Sprintf("%s: %s score %.1f (threshold %.1f, variance %.1f%%)",
		o.TestName, verdict, o.Result.FinalScore, o.Threshold, o.Result.Variance)
}
