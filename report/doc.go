/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package report renders evaluation results as markdown.
//
// Summary, Trends, Versions and Comparison render stored analytics from the
// storage package as tables. Matrix renders a judge comparison. Simple walks
// an observer tree filled by the runner and prints it as a tree:
//
//	obs := evals.NewNamespacedObserver(func(name string) *evals.ResultCollector {
//		return evals.NewResultCollector(evals.NewMetricsObserver(name))
//	})
//	r, _ := runner.New(client, cfg, runner.WithObserver(func(test string) evals.Observer {
//		return obs.Child(test)
//	}))
//	// ... evaluate tests ...
//	out, failed := report.Simple(obs, 0.7)
//
// All functions are pure and safe for concurrent use.
package report
