/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command judgeval-report prints analytics over stored evaluation records.
//
// It is configured entirely through the environment: the JUDGE_* storage
// settings select the record store and the REPORT_* settings select the view.
//
//	REPORT_KIND=summary                                   per-test roll-up
//	REPORT_KIND=trends   REPORT_TEST=greeting             trend and regressions
//	REPORT_KIND=versions [REPORT_TEST=greeting]           results by version
//	REPORT_KIND=compare  REPORT_BASE=... REPORT_TARGET=... version comparison
//
// The exit status is 1 when the view shows a problem: a pass rate below
// REPORT_MIN_PASS_RATE, a regression, or a degrading trend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"chainguard.dev/judgeval/config"
	"chainguard.dev/judgeval/report"
	"chainguard.dev/judgeval/storage"
	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
)

type reportConfig struct {
	Kind        string  `env:"REPORT_KIND,default=summary"`
	Test        string  `env:"REPORT_TEST"`
	Base        string  `env:"REPORT_BASE"`
	Target      string  `env:"REPORT_TARGET"`
	MinPassRate float64 `env:"REPORT_MIN_PASS_RATE,default=0"`
}

// errProblem marks a report that rendered but found a problem.
var errProblem = errors.New("report found problems")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var rc reportConfig
	if err := envconfig.Process(ctx, &rc); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "loading config: %v", err)
	}

	store, closeFn, err := cfg.NewStore(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "opening store: %v", err)
	}
	if store == nil {
		clog.FatalContextf(ctx, "JUDGE_STORAGE=none leaves nothing to report on")
	}

	err = run(ctx, store, rc, os.Stdout)
	if cerr := closeFn(); cerr != nil {
		clog.WarnContextf(ctx, "closing store: %v", cerr)
	}
	switch {
	case errors.Is(err, errProblem):
		os.Exit(1)
	case err != nil:
		clog.FatalContextf(ctx, "generating %s report: %v", rc.Kind, err)
	}
}

func run(ctx context.Context, store *storage.Store, rc reportConfig, w io.Writer) error {
	var out string
	problem := false

	switch rc.Kind {
	case "summary":
		sum, err := store.GenerateSummary(ctx)
		if err != nil {
			return err
		}
		out = report.Summary(sum, rc.MinPassRate)
		for _, ts := range sum.Tests {
			problem = problem || ts.PassRate < rc.MinPassRate
		}

	case "trends":
		if rc.Test == "" {
			return errors.New("REPORT_TEST is required for trends")
		}
		ta, err := store.AnalyzeTrends(ctx, rc.Test)
		if err != nil {
			return err
		}
		out = report.Trends(ta)
		problem = len(ta.Regressions) > 0 || ta.Trend == storage.TrendDegrading || ta.PassRate < rc.MinPassRate

	case "versions":
		stats, err := store.AnalyzeByVersion(ctx, rc.Test)
		if err != nil {
			return err
		}
		out = report.Versions(stats)

	case "compare":
		if rc.Base == "" || rc.Target == "" {
			return errors.New("REPORT_BASE and REPORT_TARGET are required for compare")
		}
		vc, err := store.CompareVersions(ctx, rc.Test, rc.Base, rc.Target)
		if err != nil {
			return err
		}
		out = report.Comparison(vc)
		problem = vc.Classification == storage.Regressed

	default:
		return fmt.Errorf("unknown REPORT_KIND %q (expected summary, trends, versions or compare)", rc.Kind)
	}

	if _, err := io.WriteString(w, out); err != nil {
		return err
	}
	if problem {
		return errProblem
	}
	return nil
}
