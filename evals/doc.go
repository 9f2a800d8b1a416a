/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package evals reports judge verdicts to pluggable observers.
//
// An Observer receives grades, failures and log lines. Checks inspect a
// Verdict (the aggregated consistency result of one test) and report what
// they find:
//
//	obs := evals.NewNamespacedObserver(func(name string) *evals.ResultCollector {
//	    return evals.NewResultCollector(evals.NewMetricsObserver(name))
//	})
//	evals.Observe(obs.Child("greeting"), &evals.Verdict{
//	    TestName:  "greeting",
//	    Threshold: 70,
//	    Result:    result,
//	}, evals.DefaultChecks()...)
//
// NamespacedObserver arranges observers in a tree so that the report package
// can summarize pass rates and grades per test. MetricsObserver exports
// the same signals as Prometheus series, and the testevals package routes
// them to a *testing.T.
package evals
