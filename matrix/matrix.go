/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package matrix runs one input past several judges and compares their verdicts.
// It is diagnostic only; runner verdicts never depend on it.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"chainguard.dev/judgeval/consistency"
	"chainguard.dev/judgeval/judge"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// Run is one judge's verdict on the shared input.
type Run struct {
	Name     string              `json:"name"`
	Judge    judge.Config        `json:"judge"`
	Result   *consistency.Result `json:"result,omitempty"`
	Err      error               `json:"-"`
	Duration time.Duration       `json:"duration"`
}

// Valid reports whether the judge produced a verdict.
func (r Run) Valid() bool { return r.Err == nil && r.Result != nil }

// Matrix evaluates inputs with every configured judge.
type Matrix struct {
	judge       judge.Interface
	judges      []judge.Config
	consistency consistency.Config
	concurrency int
}

// Option configures a Matrix.
type Option func(*Matrix)

// WithConcurrency bounds the number of judges running at once. Zero or less
// runs them all at once.
func WithConcurrency(n int) Option {
	return func(m *Matrix) { m.concurrency = n }
}

// New returns a Matrix comparing judges, each sampled with cfg.
func New(j judge.Interface, judges []judge.Config, cfg consistency.Config, opts ...Option) (*Matrix, error) {
	if j == nil {
		return nil, errors.New("matrix requires a judge")
	}
	if len(judges) == 0 {
		return nil, errors.New("matrix requires at least one judge configuration")
	}
	seen := make(map[string]bool, len(judges))
	for _, jc := range judges {
		if seen[jc.Label()] {
			return nil, fmt.Errorf("duplicate judge %q", jc.Label())
		}
		seen[jc.Label()] = true
	}
	m := &Matrix{judge: j, judges: judges, consistency: cfg}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Judges returns the configured judges.
func (m *Matrix) Judges() []judge.Config { return m.judges }

// Run evaluates the input with every judge concurrently. Runs come back in
// judge order; a judge that fails only marks its own Run.
func (m *Matrix) Run(ctx context.Context, testName string, response judge.Response, criteria judge.Criteria, threshold float64) []Run {
	runs := make([]Run, len(m.judges))
	checker := consistency.New(m.judge, m.consistency)

	var g errgroup.Group
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}
	for i, jc := range m.judges {
		jc.Threshold = threshold
		g.Go(func() error {
			runs[i] = m.runOne(ctx, checker, testName, response, criteria, jc, threshold)
			return nil
		})
	}
	_ = g.Wait()
	return runs
}

func (m *Matrix) runOne(ctx context.Context, checker *consistency.Checker, testName string, response judge.Response, criteria judge.Criteria, jc judge.Config, threshold float64) (run Run) {
	run = Run{Name: jc.Label(), Judge: jc}
	log := clog.FromContext(ctx).With("test", testName).With("judge", run.Name)

	start := time.Now()
	defer func() { run.Duration = time.Since(start) }()

	res, err := checker.EvaluateWithRetesting(ctx, response, criteria, jc, threshold)
	if err != nil {
		log.With("error", err.Error()).Warn("Judge failed in matrix run")
		run.Err = err
		return run
	}
	run.Result = res
	return run
}

// Consensus describes how the valid verdicts agree.
type Consensus string

const (
	AllPassed Consensus = "all-passed"
	AllFailed Consensus = "all-failed"
	Split     Consensus = "split"
	// NoVerdicts means every judge failed.
	NoVerdicts Consensus = "none"
)

// JudgeCost is one judge's spend.
type JudgeCost struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

// Comparison summarizes a matrix run.
type Comparison struct {
	Judges int `json:"judges"`
	Valid  int `json:"valid"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	// Errors maps judge name to failure text.
	Errors map[string]string `json:"errors,omitempty"`

	Consensus Consensus `json:"consensus"`
	// AgreementRate is the share of valid verdicts on the majority side.
	AgreementRate float64 `json:"agreement_rate"`

	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`

	Costs     []JudgeCost `json:"costs"`
	TotalCost float64     `json:"total_cost"`
}

// Analyze compares runs. Statistics cover valid runs only; costs cover all.
func Analyze(runs []Run) Comparison {
	c := Comparison{Judges: len(runs), Consensus: NoVerdicts}

	var scores []float64
	for _, r := range runs {
		jc := JudgeCost{Name: r.Name}
		if r.Result != nil {
			jc.Cost = r.Result.Cost()
		}
		c.Costs = append(c.Costs, jc)
		c.TotalCost += jc.Cost

		if !r.Valid() {
			if r.Err != nil {
				if c.Errors == nil {
					c.Errors = make(map[string]string)
				}
				c.Errors[r.Name] = r.Err.Error()
			}
			continue
		}
		c.Valid++
		if r.Result.Passed {
			c.Passed++
		} else {
			c.Failed++
		}
		scores = append(scores, r.Result.FinalScore)
	}
	if c.Valid == 0 {
		return c
	}

	switch {
	case c.Failed == 0:
		c.Consensus = AllPassed
	case c.Passed == 0:
		c.Consensus = AllFailed
	default:
		c.Consensus = Split
	}
	c.AgreementRate = float64(max(c.Passed, c.Failed)) / float64(c.Valid)

	c.Mean = consistency.Mean(scores)
	c.Median = consistency.Median(scores)
	c.StdDev = consistency.StdDev(scores)
	c.Min, c.Max = math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		c.Min = min(c.Min, s)
		c.Max = max(c.Max, s)
	}
	return c
}
