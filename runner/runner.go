/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"chainguard.dev/judgeval/consistency"
	"chainguard.dev/judgeval/cost"
	"chainguard.dev/judgeval/evals"
	"chainguard.dev/judgeval/judge"
	"chainguard.dev/judgeval/storage"
	"github.com/chainguard-dev/clog"
)

// Strategy decides which tests are evaluated.
type Strategy string

const (
	StrategyAlways Strategy = "always"
	StrategyNever  Strategy = "never"
	// StrategyPercentage evaluates a SampleRate fraction of non-critical
	// tests and every critical one.
	StrategyPercentage Strategy = "percentage"
	// StrategyCritical evaluates critical tests only.
	StrategyCritical Strategy = "critical"
)

// BudgetAction is what happens once the cost tracker is over budget.
type BudgetAction string

const (
	BudgetWarn  BudgetAction = "warn"
	BudgetAbort BudgetAction = "abort"
)

// ErrBudgetExceeded is returned by Evaluate under BudgetAbort once spend
// passes the tracker's budget.
var ErrBudgetExceeded = errors.New("judge budget exceeded")

// Config holds the global evaluation defaults.
type Config struct {
	Judge judge.Config `validate:"-"`
	// Threshold is the default pass mark.
	Threshold   float64 `validate:"gte=0,lte=100"`
	Consistency consistency.Config

	Strategy   Strategy `validate:"oneof=always never percentage critical"`
	SampleRate float64  `validate:"gte=0,lte=1"`

	BudgetAction BudgetAction `validate:"oneof=warn abort"`

	// SkipOnError turns judge failures into StatusErrored outcomes.
	SkipOnError bool
	// Strict returns judge failures as errors.
	Strict bool
	// Verbose logs reasoning and per-checkpoint detail for every verdict.
	Verbose bool
}

// DefaultConfig evaluates every test against a pass mark of 70.
func DefaultConfig() Config {
	return Config{
		Judge:        judge.Config{Model: "gpt-4o", Temperature: 0.1, MaxTokens: 2000},
		Threshold:    judge.DefaultThreshold,
		Consistency:  consistency.DefaultConfig(),
		Strategy:     StrategyAlways,
		SampleRate:   1,
		BudgetAction: BudgetWarn,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid runner config: %w", err)
	}
	return nil
}

// Options override the registry and global defaults for one call. Nil
// values inherit.
type Options struct {
	Threshold         *float64
	VarianceThreshold *float64
	Critical          bool
	// Judge replaces the configured judge for this call.
	Judge *judge.Config
	// SubjectModel names the model whose output is judged, for storage.
	SubjectModel string
}

// Store persists evaluated outcomes.
type Store interface {
	Save(ctx context.Context, testName string, response judge.Response, criteria judge.Criteria, result *consistency.Result, opts ...storage.SaveOption) (*storage.Record, error)
}

// Runner evaluates tests. It is safe for concurrent use.
type Runner struct {
	judge    judge.Interface
	cfg      Config
	registry *Registry
	tracker  *cost.Tracker
	store    Store
	observer func(testName string) evals.Observer
	random   func() float64
}

// Option configures a Runner.
type Option func(*Runner)

// WithRegistry supplies per-test overrides.
func WithRegistry(reg *Registry) Option {
	return func(r *Runner) { r.registry = reg }
}

// WithCostTracker charges every sample to t and enforces its budget.
func WithCostTracker(t *cost.Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithStore persists every evaluated outcome.
func WithStore(s Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithObserver reports every evaluated outcome to the observer returned for
// its test name.
func WithObserver(fn func(testName string) evals.Observer) Option {
	return func(r *Runner) { r.observer = fn }
}

// WithRandom replaces the source of percentage sampling draws. fn returns
// values in [0, 1).
func WithRandom(fn func() float64) Option {
	return func(r *Runner) { r.random = fn }
}

// New returns a Runner drawing verdicts from j.
func New(j judge.Interface, cfg Config, opts ...Option) (*Runner, error) {
	if j == nil {
		return nil, errors.New("runner requires a judge")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{judge: j, cfg: cfg, random: rand.Float64}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the runner's configuration.
func (r *Runner) Config() Config { return r.cfg }

// Evaluate judges response for testName.
//
// Skipped and errored outcomes carry no Result. Under BudgetAbort, once the
// tracker is over budget Evaluate returns ErrBudgetExceeded, together with
// the outcome that crossed the budget, and refuses further work.
func (r *Runner) Evaluate(ctx context.Context, testName string, response judge.Response, criteria judge.Criteria, opts Options) (*Outcome, error) {
	settings, _ := r.registry.Lookup(testName)
	out := &Outcome{
		TestName:  testName,
		Critical:  settings.Critical || opts.Critical,
		Threshold: first(r.cfg.Threshold, opts.Threshold, settings.Threshold),
	}
	log := clog.FromContext(ctx).With("test", testName)

	if r.cfg.BudgetAction == BudgetAbort && r.tracker != nil && r.tracker.OverBudget() {
		return nil, r.budgetError()
	}

	if !r.sampled(out.Critical) {
		out.Status, out.SkipReason = StatusSkipped, SkipSampling
		log.With("strategy", r.cfg.Strategy).Debug("Skipping judge evaluation")
		return out, nil
	}

	cc := r.cfg.Consistency
	cc.VarianceThreshold = first(cc.VarianceThreshold, opts.VarianceThreshold, settings.VarianceThreshold)
	jc := r.cfg.Judge
	if opts.Judge != nil {
		jc = *opts.Judge
	}
	jc.Threshold = out.Threshold

	res, err := consistency.New(r.judge, cc).EvaluateWithRetesting(ctx, response, criteria, jc, out.Threshold)
	if err != nil {
		usage := consistency.UsageOf(err)
		if ferr := r.fail(ctx, out, jc, err); ferr != nil {
			r.record(usage)
			return nil, ferr
		}
		if out.Status != StatusEvaluated {
			if err := r.charge(ctx, usage); err != nil {
				return out, err
			}
			return out, nil
		}
		out.Result.DroppedUsage = usage
	} else {
		out.Status, out.Result = StatusEvaluated, res
	}

	r.report(ctx, out)
	if err := r.persist(ctx, out, response, criteria, opts.SubjectModel); err != nil {
		return nil, err
	}
	if err := r.charge(ctx, out.Result.Usage()); err != nil {
		return out, err
	}
	return out, nil
}

// sampled applies the sampling strategy.
func (r *Runner) sampled(critical bool) bool {
	switch r.cfg.Strategy {
	case StrategyNever:
		return false
	case StrategyCritical:
		return critical
	case StrategyPercentage:
		return critical || r.random() < r.cfg.SampleRate
	default:
		return true
	}
}

// fail resolves a judge failure into out, or returns the error to propagate.
func (r *Runner) fail(ctx context.Context, out *Outcome, jc judge.Config, err error) error {
	log := clog.FromContext(ctx).With("test", out.TestName).With("error", err.Error())
	out.Err = err

	switch {
	case r.cfg.Strict, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("evaluating %s: %w", out.TestName, err)

	case judge.IsUnavailable(err):
		out.Status, out.SkipReason = StatusSkipped, SkipUnavailable
		log.Warn("Judge backend unavailable, skipping evaluation")

	case r.cfg.SkipOnError:
		out.Status = StatusErrored
		log.Warn("Judge evaluation failed, skipping")

	default:
		log.Warn("Judge evaluation failed, recording a failed verdict")
		sample := &judge.Result{
			Reasoning:   "Evaluation failed: " + err.Error(),
			Checkpoints: map[string]judge.CheckpointScore{},
			Metadata:    judge.Metadata{Model: jc.Model},
			Error:       err.Error(),
		}
		out.Status = StatusEvaluated
		out.Result = &consistency.Result{
			Samples:  []*judge.Result{sample},
			Selected: sample,
		}
	}
	return nil
}

// report logs the verdict and hands it to the observer.
func (r *Runner) report(ctx context.Context, out *Outcome) {
	res := out.Result
	log := clog.FromContext(ctx).With("test", out.TestName).
		With("score", res.FinalScore).
		With("threshold", out.Threshold).
		With("passed", res.Passed)

	sel := res.Selected
	if sel != nil && sel.Evidence != nil && len(sel.Evidence.MissingEvidence) > 0 {
		log.With("missing", sel.Evidence.MissingEvidence).Warn("Judge cited evidence missing from the response")
	}
	if r.cfg.Verbose {
		log.With("variance", res.Variance).
			With("samples", len(res.Samples)).
			With("retests", res.Retests).
			Info("Judge verdict")
		if sel != nil {
			log.With("reasoning", sel.Reasoning).Info("Judge reasoning")
			for _, name := range sel.CheckpointNames() {
				cp := sel.Checkpoints[name]
				log.With("checkpoint", name).
					With("checkpoint_score", cp.Score).
					With("evidence", cp.Evidence).
					Info("Judge checkpoint")
			}
			if sel.Evidence != nil {
				for _, w := range sel.Evidence.Warnings {
					log.With("warning", w).Info("Judge evidence warning")
				}
			}
		}
	}

	if r.observer != nil {
		evals.Observe(r.observer(out.TestName), &evals.Verdict{
			TestName:  out.TestName,
			Threshold: out.Threshold,
			Result:    res,
		}, evals.DefaultChecks()...)
	}
}

// persist saves the outcome when a store is attached. Save failures are
// logged unless the runner is strict.
func (r *Runner) persist(ctx context.Context, out *Outcome, response judge.Response, criteria judge.Criteria, subject string) error {
	if r.store == nil {
		return nil
	}
	rec, err := r.store.Save(ctx, out.TestName, response, criteria, out.Result,
		storage.WithSubjectModel(subject), storage.WithThreshold(out.Threshold))
	if err != nil {
		if r.cfg.Strict {
			return fmt.Errorf("saving %s: %w", out.TestName, err)
		}
		clog.FromContext(ctx).With("test", out.TestName).
			With("error", err.Error()).
			Warn("Unable to save evaluation record")
		return nil
	}
	out.RecordID = rec.ID
	return nil
}

// record adds every call that reported token usage to the tracker.
func (r *Runner) record(usage []judge.Metadata) {
	if r.tracker == nil {
		return
	}
	for _, md := range usage {
		if md.InputTokens == 0 && md.OutputTokens == 0 {
			continue
		}
		r.tracker.Record(md.Model, md.InputTokens, md.OutputTokens)
	}
}

// charge records usage and applies the budget action.
func (r *Runner) charge(ctx context.Context, usage []judge.Metadata) error {
	if r.tracker == nil {
		return nil
	}
	r.record(usage)
	if !r.tracker.OverBudget() {
		return nil
	}
	if r.cfg.BudgetAction == BudgetAbort {
		return r.budgetError()
	}
	clog.FromContext(ctx).With("spent", r.tracker.Total()).
		With("budget", r.tracker.Budget()).
		Warn("Judge spend is over budget")
	return nil
}

func (r *Runner) budgetError() error {
	return fmt.Errorf("%w: spent $%.4f of $%.2f", ErrBudgetExceeded, r.tracker.Total(), r.tracker.Budget())
}

// first returns the first set override, or fallback.
func first(fallback float64, overrides ...*float64) float64 {
	for _, v := range overrides {
		if v != nil {
			return *v
		}
	}
	return fallback
}
