/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package consistency turns several noisy judge samples into one verdict.
//
// A Checker draws multiple independent judge calls for the same input,
// measures their spread as a coefficient of variation, and picks a
// representative sample. When the representative score lands close to the
// pass mark, EvaluateWithRetesting draws more samples and, if the score is
// still borderline, applies a configurable pass/fail policy.
package consistency

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/judgeval/judge"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// ErrEvaluationImpossible is returned when every sample in a batch failed.
var ErrEvaluationImpossible = errors.New("evaluation impossible: all judge samples failed")

// FailedError wraps ErrEvaluationImpossible and the last sample error.
type FailedError struct {
	Samples int
	// Usage holds the metadata of failed samples the backend billed for.
	Usage []judge.Metadata
	Err   error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%v (%d samples): %v", ErrEvaluationImpossible, e.Samples, e.Err)
}

func (e *FailedError) Unwrap() []error { return []error{ErrEvaluationImpossible, e.Err} }

// UsageOf returns the billed usage of the samples behind err.
func UsageOf(err error) []judge.Metadata {
	var fe *FailedError
	if errors.As(err, &fe) {
		return fe.Usage
	}
	return nil
}

// Selection chooses the representative sample.
type Selection string

const (
	// SelectMedian sorts samples by score and takes the middle one.
	SelectMedian Selection = "median"
	// SelectMeanClosest takes the first sample closest to the mean score.
	SelectMeanClosest Selection = "mean-closest"
)

// BorderlinePolicy decides pass/fail for scores that stay in the borderline band.
type BorderlinePolicy string

const (
	// BorderlineMedian keeps the selected sample's verdict.
	BorderlineMedian BorderlinePolicy = "median"
	// BorderlineOptimistic passes if any sample reached the threshold.
	BorderlineOptimistic BorderlinePolicy = "optimistic"
	// BorderlinePessimistic passes only if every sample reached the threshold.
	BorderlinePessimistic BorderlinePolicy = "pessimistic"
)

// Config tunes sampling, selection and retesting.
type Config struct {
	// Retries and MaxSamples together bound the batch size: min(Retries, MaxSamples).
	Retries    int `json:"retries" yaml:"retries" validate:"gte=1"`
	MaxSamples int `json:"max_samples" yaml:"max_samples" validate:"gte=1"`

	// VarianceThreshold is the coefficient of variation (percent) above
	// which a consistency warning is raised.
	VarianceThreshold float64 `json:"variance_threshold" yaml:"variance_threshold" validate:"gte=0"`

	Selection Selection `json:"selection" yaml:"selection" validate:"omitempty,oneof=median mean-closest"`

	Retesting  bool             `json:"retesting" yaml:"retesting"`
	BandWidth  float64          `json:"band_width" yaml:"band_width" validate:"gte=0,lte=50"`
	MaxRetests int              `json:"max_retests" yaml:"max_retests" validate:"gte=0"`
	Borderline BorderlinePolicy `json:"borderline" yaml:"borderline" validate:"omitempty,oneof=median optimistic pessimistic"`

	// Concurrency is the number of samples drawn in parallel. Values below 2
	// draw sequentially.
	Concurrency int `json:"concurrency" yaml:"concurrency" validate:"gte=0"`
}

// DefaultConfig draws three sequential samples, warns above 15% variation
// and retests up to twice within 5 points of the threshold.
func DefaultConfig() Config {
	return Config{
		Retries:           3,
		MaxSamples:        3,
		VarianceThreshold: 15,
		Selection:         SelectMedian,
		Retesting:         true,
		BandWidth:         5,
		MaxRetests:        2,
		Borderline:        BorderlineMedian,
		Concurrency:       1,
	}
}

// BatchSize returns the number of samples drawn per batch.
func (c Config) BatchSize() int {
	return max(min(c.Retries, c.MaxSamples), 1)
}

// Result is the aggregate of several judge samples.
type Result struct {
	// Samples are the successful samples in the order they were drawn.
	Samples []*judge.Result `json:"samples"`
	// FinalScore is the score of Selected.
	FinalScore float64 `json:"final_score"`
	// Variance is the coefficient of variation of the sample scores, in percent.
	Variance           float64       `json:"variance"`
	Passed             bool          `json:"passed"`
	ConsistencyWarning bool          `json:"consistency_warning"`
	Selected           *judge.Result `json:"selected"`

	// Dropped counts samples that failed and were discarded.
	Dropped int `json:"dropped,omitempty"`
	// DroppedUsage is the metadata of dropped samples that still consumed tokens.
	DroppedUsage []judge.Metadata `json:"dropped_usage,omitempty"`
	// Retests counts the extra batches drawn because the score was borderline.
	Retests int `json:"retests,omitempty"`
	// BorderlineOverride names the policy that decided Passed, if any.
	BorderlineOverride BorderlinePolicy `json:"borderline_override,omitempty"`
}

// Cost sums the cost of every sample, dropped ones included.
func (r *Result) Cost() float64 {
	var total float64
	for _, md := range r.Usage() {
		total += md.Cost
	}
	return total
}

// Usage lists the metadata of every judge call behind r, kept samples first.
func (r *Result) Usage() []judge.Metadata {
	out := make([]judge.Metadata, 0, len(r.Samples)+len(r.DroppedUsage))
	for _, s := range r.Samples {
		out = append(out, s.Metadata)
	}
	return append(out, r.DroppedUsage...)
}

// Checker draws and aggregates judge samples.
type Checker struct {
	judge judge.Interface
	cfg   Config
}

// New returns a Checker drawing samples from j.
func New(j judge.Interface, cfg Config) *Checker {
	if cfg.Selection == "" {
		cfg.Selection = SelectMedian
	}
	if cfg.Borderline == "" {
		cfg.Borderline = BorderlineMedian
	}
	return &Checker{judge: j, cfg: cfg}
}

// Config returns the checker's configuration.
func (c *Checker) Config() Config { return c.cfg }

// EvaluateWithConsistency draws one batch of samples and aggregates them.
// Failed samples are dropped; if all fail, the error wraps
// ErrEvaluationImpossible and the last sample error.
func (c *Checker) EvaluateWithConsistency(ctx context.Context, response judge.Response, criteria judge.Criteria, cfg judge.Config) (*Result, error) {
	b, err := c.batch(ctx, response, criteria, cfg, 0)
	if err != nil {
		return nil, err
	}
	res := c.summarize(ctx, b.samples)
	res.Dropped, res.DroppedUsage = b.dropped, b.usage
	return res, nil
}

// EvaluateWithRetesting evaluates once and, while the final score lies in the
// closed band [threshold-BandWidth, threshold+BandWidth], draws further
// batches up to MaxRetests. Every sample's verdict is re-derived from
// threshold. A score still in the band is decided by the borderline policy.
func (c *Checker) EvaluateWithRetesting(ctx context.Context, response judge.Response, criteria judge.Criteria, cfg judge.Config, threshold float64) (*Result, error) {
	b, err := c.batch(ctx, response, criteria, cfg, 0)
	if err != nil {
		return nil, err
	}
	samples, dropped, usage := b.samples, b.dropped, b.usage
	applyThreshold(samples, threshold)
	res := c.summarize(ctx, samples)

	log := clog.FromContext(ctx)
	for c.cfg.Retesting && res.Retests < c.cfg.MaxRetests && c.borderline(res.FinalScore, threshold) {
		log.With("score", res.FinalScore).
			With("threshold", threshold).
			With("retest", res.Retests+1).
			Info("Borderline judge score, retesting")

		more, err := c.batch(ctx, response, criteria, cfg, len(samples)+dropped)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			dropped += c.cfg.BatchSize()
			usage = append(usage, UsageOf(err)...)
			log.With("error", err.Error()).Warn("Retest batch failed, keeping earlier samples")
			break
		}
		dropped += more.dropped
		usage = append(usage, more.usage...)
		applyThreshold(more.samples, threshold)
		samples = append(samples, more.samples...)

		retests := res.Retests + 1
		res = c.summarize(ctx, samples)
		res.Retests = retests
	}
	res.Dropped, res.DroppedUsage = dropped, usage

	if c.borderline(res.FinalScore, threshold) && c.cfg.Borderline != BorderlineMedian {
		res.BorderlineOverride = c.cfg.Borderline
		res.Passed = borderlineVerdict(c.cfg.Borderline, res.Samples, threshold)
	}
	return res, nil
}

// borderline reports whether score lies in the closed band around threshold.
func (c *Checker) borderline(score, threshold float64) bool {
	return score >= threshold-c.cfg.BandWidth && score <= threshold+c.cfg.BandWidth
}

func borderlineVerdict(policy BorderlinePolicy, samples []*judge.Result, threshold float64) bool {
	switch policy {
	case BorderlineOptimistic:
		for _, s := range samples {
			if s.Score >= threshold {
				return true
			}
		}
		return false
	case BorderlinePessimistic:
		for _, s := range samples {
			if s.Score < threshold {
				return false
			}
		}
		return true
	default:
		panic(fmt.Sprintf("unexpected borderline policy %q", policy))
	}
}

func applyThreshold(samples []*judge.Result, threshold float64) {
	for _, s := range samples {
		s.ApplyThreshold(threshold)
	}
}

// drawn is the outcome of one batch.
type drawn struct {
	samples []*judge.Result
	dropped int
	usage   []judge.Metadata
}

// batch draws BatchSize samples numbered from offset+1. Order follows the
// attempt number regardless of concurrency.
func (c *Checker) batch(ctx context.Context, response judge.Response, criteria judge.Criteria, cfg judge.Config, offset int) (*drawn, error) {
	n := c.cfg.BatchSize()
	results := make([]*judge.Result, n)
	errs := make([]error, n)
	billed := make([]*judge.Metadata, n)

	var g errgroup.Group
	g.SetLimit(max(c.cfg.Concurrency, 1))
	for i := range n {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					errs[i] = fmt.Errorf("judge panicked: %v", p)
				}
			}()
			res, err := c.judge.Evaluate(ctx, response, criteria, cfg, offset+i+1)
			switch {
			case err != nil:
				errs[i] = err
				if md, ok := judge.UsageOf(err); ok {
					billed[i] = &md
				}
			case res.Degraded():
				errs[i] = errors.New(res.Error)
				if res.Metadata.InputTokens > 0 || res.Metadata.OutputTokens > 0 {
					billed[i] = &res.Metadata
				}
			default:
				results[i] = res
			}
			// Sample failures are recorded, never returned, so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	d := &drawn{samples: make([]*judge.Result, 0, n)}
	var lastErr error
	for i := range n {
		if billed[i] != nil {
			d.usage = append(d.usage, *billed[i])
		}
		if errs[i] != nil {
			d.dropped++
			lastErr = errs[i]
			clog.FromContext(ctx).With("attempt", offset+i+1).
				With("error", errs[i].Error()).
				Warn("Judge sample failed, dropping it")
			continue
		}
		d.samples = append(d.samples, results[i])
	}
	if len(d.samples) == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &FailedError{Samples: n, Usage: d.usage, Err: lastErr}
	}
	return d, nil
}

// summarize computes variance and selection over samples, which must not be empty.
func (c *Checker) summarize(ctx context.Context, samples []*judge.Result) *Result {
	raw := scores(samples)
	selected := selectSample(c.cfg.Selection, samples)
	res := &Result{
		Samples:    samples,
		FinalScore: selected.Score,
		Variance:   CoefficientOfVariation(raw),
		Passed:     selected.Passed,
		Selected:   selected,
	}
	if res.Variance > c.cfg.VarianceThreshold {
		res.ConsistencyWarning = true
		clog.FromContext(ctx).With("scores", raw).
			With("variance", res.Variance).
			With("threshold", c.cfg.VarianceThreshold).
			Warn("Judge scores are inconsistent")
	}
	return res
}
