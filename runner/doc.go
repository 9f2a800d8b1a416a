/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package runner is the entry point for judging one test's output.
//
// A Runner decides whether a test is sampled at all, resolves its pass mark
// and variance limit from a Registry, draws a consistency-checked verdict,
// charges the samples to a cost.Tracker and reports the outcome. Judge
// failures never escape unless the runner is strict:
//
//	r, err := runner.New(client, runner.DefaultConfig(),
//		runner.WithRegistry(reg),
//		runner.WithCostTracker(cost.New("suite", pricing.Default(), 5)),
//	)
//	outcome, err := r.Evaluate(ctx, "greeting", response, criteria, runner.Options{})
//	switch outcome.Status {
//	case runner.StatusSkipped:
//		// not sampled, or no judge backend available
//	case runner.StatusErrored:
//		// judge failed and SkipOnError is set
//	case runner.StatusEvaluated:
//		fmt.Println(outcome.Passed())
//	}
package runner
