/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testevals_test

import (
	"testing"

	"chainguard.dev/judgeval/consistency"
	"chainguard.dev/judgeval/evals"
	"chainguard.dev/judgeval/evals/testevals"
	"chainguard.dev/judgeval/judge"
)

func TestPassingVerdict(t *testing.T) {
	obs := evals.NewNamespacedObserver(func(name string) evals.Observer {
		return testevals.NewPrefix(t, name)
	})

	sel := &judge.Result{Score: 92, Passed: true, Reasoning: "greets warmly"}
	evals.Observe(obs.Child("greeting"), &evals.Verdict{
		TestName:  "greeting",
		Threshold: 70,
		Result: &consistency.Result{
			Samples:    []*judge.Result{sel},
			FinalScore: sel.Score,
			Passed:     true,
			Selected:   sel,
		},
	}, evals.DefaultChecks()...)

	if got := obs.Child("greeting").Total(); got != 1 {
		t.Errorf("Total: got = %d, wanted = 1", got)
	}
}

func TestObserverCounts(t *testing.T) {
	obs := testevals.New(t)
	obs.Log("message")
	obs.Grade(0.5, "halfway")
	for range 3 {
		obs.Increment()
	}
	if got := obs.Total(); got != 3 {
		t.Errorf("Total: got = %d, wanted = 3", got)
	}
}
