/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"chainguard.dev/judgeval/consistency"
	"chainguard.dev/judgeval/judge"
	"chainguard.dev/judgeval/storage"
)

func seed(t *testing.T, scores ...float64) *storage.Store {
	t.Helper()
	store := storage.New(storage.NewFileBackend(t.TempDir()),
		storage.WithVersioner(&storage.Versioner{Dir: t.TempDir(), PackageVersion: "3.0.1"}))
	for _, s := range scores {
		sel := &judge.Result{Score: s, Passed: s >= 70}
		res := &consistency.Result{Samples: []*judge.Result{sel}, Selected: sel, FinalScore: s, Passed: sel.Passed}
		if _, err := store.Save(context.Background(), "greeting", judge.TextResponse("hi"), judge.Criteria{Description: "greets"}, res); err != nil {
			t.Fatalf("Save() = %v", err)
		}
	}
	return store
}

func TestRun(t *testing.T) {
	tests := []struct {
		name        string
		scores      []float64
		rc          reportConfig
		wantProblem bool
		wantErr     bool
		want        string
	}{
		{name: "summary", scores: []float64{90, 80}, rc: reportConfig{Kind: "summary"}, want: "Evaluation Summary"},
		{name: "summary below minimum", scores: []float64{90, 50}, rc: reportConfig{Kind: "summary", MinPassRate: 80}, wantProblem: true, want: "❌ 50.0%"},
		{name: "trends", scores: []float64{80, 82}, rc: reportConfig{Kind: "trends", Test: "greeting"}, want: "Trend: greeting"},
		{name: "trends regression", scores: []float64{90, 75}, rc: reportConfig{Kind: "trends", Test: "greeting"}, wantProblem: true, want: "Regressions"},
		{name: "trends without test", rc: reportConfig{Kind: "trends"}, wantErr: true},
		{name: "trends without records", rc: reportConfig{Kind: "trends", Test: "greeting"}, wantErr: true},
		{name: "versions", scores: []float64{80}, rc: reportConfig{Kind: "versions"}, want: "3.0.1@unknown"},
		{name: "compare", scores: []float64{80}, rc: reportConfig{Kind: "compare", Base: "3.0.1@unknown", Target: "3.0.1@unknown"}, want: "neutral"},
		{name: "compare unknown", scores: []float64{80}, rc: reportConfig{Kind: "compare", Base: "3.0.1@unknown", Target: "9@x"}, wantErr: true},
		{name: "unknown kind", rc: reportConfig{Kind: "pie"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := run(context.Background(), seed(t, tt.scores...), tt.rc, &buf)

			switch {
			case tt.wantErr:
				if err == nil || errors.Is(err, errProblem) {
					t.Fatalf("run() = %v, wanted a failure", err)
				}
				return
			case tt.wantProblem:
				if !errors.Is(err, errProblem) {
					t.Errorf("run() = %v, wanted errProblem", err)
				}
			case err != nil:
				t.Fatalf("run() = %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}
