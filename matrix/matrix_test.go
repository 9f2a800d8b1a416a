/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package matrix

import (
	"context"
	"errors"
	"testing"
	"time"

	"chainguard.dev/judgeval/consistency"
	"chainguard.dev/judgeval/judge"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelJudge scores by model; models without a score fail.
type modelJudge struct {
	scores map[string]float64
	panics string
	slow   string
}

func (m *modelJudge) Evaluate(ctx context.Context, _ judge.Response, _ judge.Criteria, cfg judge.Config, attempt int) (*judge.Result, error) {
	if cfg.Model == m.panics {
		panic("backend bug")
	}
	if cfg.Model == m.slow {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	score, ok := m.scores[cfg.Model]
	if !ok {
		return nil, errors.New("model " + cfg.Model + " is down")
	}
	res := &judge.Result{Score: score, Metadata: judge.Metadata{Model: cfg.Model, Attempt: attempt, Cost: 0.001}}
	res.ApplyThreshold(cfg.Threshold)
	return res, nil
}

var (
	response = judge.TextResponse("hello")
	criteria = judge.Criteria{Description: "greets"}
)

func singleSample() consistency.Config {
	cfg := consistency.DefaultConfig()
	cfg.Retries, cfg.MaxSamples, cfg.Retesting = 1, 1, false
	return cfg
}

func judges(models ...string) []judge.Config {
	out := make([]judge.Config, len(models))
	for i, m := range models {
		out[i] = judge.Config{Model: m}
	}
	return out
}

func TestRunIsolatesFailures(t *testing.T) {
	j := &modelJudge{
		scores: map[string]float64{"gpt-4o": 90, "claude-3-5-sonnet": 60, "gemini-1.5-pro": 80},
		panics: "broken",
	}
	m, err := New(j, judges("gpt-4o", "down", "claude-3-5-sonnet", "broken", "gemini-1.5-pro"), singleSample())
	require.NoError(t, err)

	runs := m.Run(context.Background(), "greeting", response, criteria, 70)
	require.Len(t, runs, 5)

	names := make([]string, len(runs))
	for i, r := range runs {
		names[i] = r.Name
	}
	if diff := cmp.Diff([]string{"gpt-4o", "down", "claude-3-5-sonnet", "broken", "gemini-1.5-pro"}, names); diff != "" {
		t.Errorf("run order (-want, +got): %s", diff)
	}
	assert.True(t, runs[0].Valid())
	assert.False(t, runs[1].Valid())
	assert.ErrorIs(t, runs[1].Err, consistency.ErrEvaluationImpossible)
	assert.ErrorContains(t, runs[3].Err, "panicked")
	assert.Equal(t, 70.0, runs[2].Judge.Threshold)

	c := Analyze(runs)
	want := Comparison{
		Judges:        5,
		Valid:         3,
		Passed:        2,
		Failed:        1,
		Errors:        map[string]string{"down": runs[1].Err.Error(), "broken": runs[3].Err.Error()},
		Consensus:     Split,
		AgreementRate: 2.0 / 3.0,
		Mean:          230.0 / 3.0,
		Median:        80,
		Min:           60,
		Max:           90,
		StdDev:        12.472191289246473,
		Costs: []JudgeCost{
			{Name: "gpt-4o", Cost: 0.001},
			{Name: "down"},
			{Name: "claude-3-5-sonnet", Cost: 0.001},
			{Name: "broken"},
			{Name: "gemini-1.5-pro", Cost: 0.001},
		},
		TotalCost: 0.003,
	}
	if diff := cmp.Diff(want, c, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Analyze() (-want, +got): %s", diff)
	}
}

func TestSlowJudgeDoesNotBlockOthers(t *testing.T) {
	j := &modelJudge{scores: map[string]float64{"fast": 90, "slow": 90}, slow: "slow"}
	m, err := New(j, judges("slow", "fast"), singleSample())
	require.NoError(t, err)

	runs := m.Run(context.Background(), "greeting", response, criteria, 70)
	assert.Less(t, runs[1].Duration, runs[0].Duration)
	assert.Equal(t, AllPassed, Analyze(runs).Consensus)
}

func TestConsensus(t *testing.T) {
	run := func(score float64, passed bool) Run {
		return Run{Name: "j", Result: &consistency.Result{FinalScore: score, Passed: passed}}
	}
	tests := []struct {
		name      string
		runs      []Run
		want      Consensus
		agreement float64
	}{
		{"all passed", []Run{run(80, true), run(90, true)}, AllPassed, 1},
		{"all failed", []Run{run(10, false), run(20, false)}, AllFailed, 1},
		{"split majority", []Run{run(80, true), run(90, true), run(10, false), run(85, true)}, Split, 0.75},
		{"even split", []Run{run(80, true), run(10, false)}, Split, 0.5},
		{"no verdicts", []Run{{Name: "j", Err: errors.New("down")}}, NoVerdicts, 0},
		{"empty", nil, NoVerdicts, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Analyze(tt.runs)
			assert.Equal(t, tt.want, c.Consensus)
			assert.InDelta(t, tt.agreement, c.AgreementRate, 1e-9)
		})
	}
}

func TestNewValidation(t *testing.T) {
	j := &modelJudge{}
	_, err := New(j, nil, singleSample())
	assert.Error(t, err)

	_, err = New(nil, judges("gpt-4o"), singleSample())
	assert.Error(t, err)

	_, err = New(j, []judge.Config{{Model: "gpt-4o"}, {Model: "gpt-4o"}}, singleSample())
	assert.Error(t, err, "duplicate labels")

	m, err := New(j, []judge.Config{{Model: "gpt-4o"}, {Name: "hot", Model: "gpt-4o", Temperature: 1}}, singleSample(), WithConcurrency(1))
	require.NoError(t, err)
	assert.Len(t, m.Judges(), 2)
}
