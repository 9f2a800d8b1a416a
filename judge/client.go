/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/judgeval/metrics"
	"chainguard.dev/judgeval/pricing"
	"chainguard.dev/judgeval/retry"
	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// DefaultThreshold is the pass mark used when neither the client nor the
// Config sets one.
const DefaultThreshold = 70

// Client issues single judge calls. It owns one Backend per provider and is
// safe for concurrent use once constructed.
type Client struct {
	backends            map[Provider]Backend
	defaultProvider     Provider
	evidenceMode        EvidenceMode
	similarityThreshold float64
	graceful            bool
	retry               retry.Config
	prices              pricing.Table
	limiter             *rate.Limiter
	metrics             *metrics.Judge
	threshold           float64
	now                 func() time.Time
}

var _ Interface = (*Client)(nil)

// Option configures a Client.
type Option func(*Client) error

// New constructs a Client. Without options it retries 3 times with 1s
// doubling backoff, prices calls from pricing.Default, skips evidence checks
// and propagates errors.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		backends:            make(map[Provider]Backend, 3),
		defaultProvider:     ProviderOpenAI,
		evidenceMode:        EvidenceOff,
		similarityThreshold: DefaultSimilarityThreshold,
		retry:               retry.DefaultConfig(),
		prices:              pricing.Default(),
		threshold:           DefaultThreshold,
		now:                 time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithBackend registers backend for provider.
func WithBackend(provider Provider, backend Backend) Option {
	return func(c *Client) error {
		if backend == nil {
			return fmt.Errorf("backend for %q cannot be nil", provider)
		}
		c.backends[provider] = backend
		return nil
	}
}

// WithEndpoint constructs and registers the backend for provider.
func WithEndpoint(ctx context.Context, provider Provider, ep Endpoint) Option {
	return func(c *Client) error {
		backend, err := NewBackend(ctx, provider, ep)
		if err != nil {
			return err
		}
		c.backends[provider] = backend
		return nil
	}
}

// WithDefaultProvider selects the backend for Configs that leave Provider empty.
func WithDefaultProvider(provider Provider) Option {
	return func(c *Client) error {
		c.defaultProvider = provider
		return nil
	}
}

// WithEvidence enables evidence validation. threshold is only used in
// similarity mode and must be in (0, 1].
func WithEvidence(mode EvidenceMode, threshold float64) Option {
	return func(c *Client) error {
		switch mode {
		case EvidenceOff, EvidenceExact:
		case EvidenceSimilarity:
			if threshold <= 0 || threshold > 1 {
				return fmt.Errorf("similarity threshold must be in (0, 1], got %v", threshold)
			}
			c.similarityThreshold = threshold
		default:
			return fmt.Errorf("unknown evidence mode: %q", mode)
		}
		c.evidenceMode = mode
		return nil
	}
}

// WithGracefulDegradation makes Evaluate return a zero-score failed Result
// instead of an error when the call cannot complete.
func WithGracefulDegradation(enabled bool) Option {
	return func(c *Client) error {
		c.graceful = enabled
		return nil
	}
}

// WithRetry replaces the retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
		c.retry = cfg
		return nil
	}
}

// WithPricing replaces the price table. Negative rates are rejected.
func WithPricing(prices pricing.Table) Option {
	return func(c *Client) error {
		if err := prices.Validate(); err != nil {
			return err
		}
		c.prices = prices
		return nil
	}
}

// WithRateLimit caps backend calls at rps per second with the given burst.
// Zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps < 0 {
			return fmt.Errorf("rate limit cannot be negative: %v", rps)
		}
		if rps == 0 {
			c.limiter = nil
			return nil
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		return nil
	}
}

// WithMetrics records token, cost and latency measurements on m.
func WithMetrics(m *metrics.Judge) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// WithDefaultThreshold sets the pass mark for Configs without one.
func WithDefaultThreshold(threshold float64) Option {
	return func(c *Client) error {
		if threshold < 0 || threshold > 100 {
			return fmt.Errorf("threshold must be in [0, 100], got %v", threshold)
		}
		c.threshold = threshold
		return nil
	}
}

// Threshold returns the pass mark in effect for cfg.
func (c *Client) Threshold(cfg Config) float64 {
	if cfg.Threshold > 0 {
		return cfg.Threshold
	}
	return c.threshold
}

// Evaluate implements Interface.
func (c *Client) Evaluate(ctx context.Context, response Response, criteria Criteria, cfg Config, attempt int) (*Result, error) {
	start := c.now()
	md := Metadata{Model: cfg.Model, Timestamp: start, Attempt: attempt}

	res, err := c.evaluate(ctx, response, criteria, cfg, &md)
	md.Duration = time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordCall(ctx, cfg.Model, md.Duration, string(KindOf(err)))
	}
	if err == nil {
		res.Metadata = md
		return res, nil
	}
	var pe *ParseError
	if errors.As(err, &pe) && (md.InputTokens > 0 || md.OutputTokens > 0) {
		usage := md
		pe.Usage = &usage
	}

	if !c.graceful || errors.Is(err, context.Canceled) {
		return nil, err
	}
	clog.FromContext(ctx).With("model", cfg.Model).
		With("attempt", attempt).
		With("error", err.Error()).
		Warn("Judge evaluation failed, returning degraded result")
	return &Result{
		Score:       0,
		Passed:      false,
		Reasoning:   "Evaluation failed: " + err.Error(),
		Checkpoints: map[string]CheckpointScore{},
		Metadata:    md,
		Error:       err.Error(),
	}, nil
}

// evaluate performs the call. md receives token usage and cost whenever a
// completion came back, even if its content could not be parsed.
func (c *Client) evaluate(ctx context.Context, response Response, criteria Criteria, cfg Config, md *Metadata) (*Result, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = c.defaultProvider
	}
	backend, ok := c.backends[provider]
	if !ok {
		return nil, fmt.Errorf("%w for provider %q", ErrNoBackend, provider)
	}

	prompt, err := buildPrompt(cfg.PromptTemplate, response, criteria)
	if err != nil {
		return nil, err
	}

	tr := otel.Tracer("chainguard.dev/judgeval/judge", oteltrace.WithInstrumentationVersion("1.0.0"))
	ctx, span := tr.Start(ctx, "judge.evaluate", oteltrace.WithAttributes(
		attribute.String("judge.provider", string(provider)),
		attribute.String("judge.model", cfg.Model),
		attribute.Int("judge.attempt", md.Attempt),
	))
	defer span.End()

	req := &CompletionRequest{
		Model:       cfg.Model,
		System:      SystemPrompt,
		User:        prompt,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	completion, err := retry.Do(ctx, c.retry, "judge evaluation",
		func(err error) bool { return ctx.Err() == nil && IsRetryable(err) },
		func(n int) (*Completion, error) {
			md.BackendAttempts = n
			return c.complete(ctx, provider, backend, req, cfg.Timeout)
		})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	md.InputTokens = completion.InputTokens
	md.OutputTokens = completion.OutputTokens
	md.Cost = c.cost(ctx, cfg.Model, completion.InputTokens, completion.OutputTokens)
	span.SetAttributes(
		attribute.Int64("judge.tokens.input", md.InputTokens),
		attribute.Int64("judge.tokens.output", md.OutputTokens),
	)
	if c.metrics != nil {
		c.metrics.RecordTokens(ctx, cfg.Model, md.InputTokens, md.OutputTokens)
		c.metrics.RecordCost(ctx, cfg.Model, md.Cost)
	}

	verdict, err := parseVerdict(completion.Content, criteria)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res := &Result{
		Score:       verdict.Score,
		Reasoning:   verdict.Reasoning,
		Checkpoints: verdict.Checkpoints,
	}
	res.ApplyThreshold(c.Threshold(cfg))
	res.Evidence = validateEvidence(c.evidenceMode, c.similarityThreshold, response.Text(), res.Checkpoints, res.CheckpointNames())
	span.SetAttributes(attribute.Float64("judge.score", res.Score))
	return res, nil
}

// complete issues one rate-limited backend call under its own timeout. A
// deadline hit by the per-call timeout is a retryable timeout; one inherited
// from ctx is not.
func (c *Client) complete(ctx context.Context, provider Provider, backend Backend, req *CompletionRequest, timeout time.Duration) (*Completion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for judge rate limit: %w", err)
		}
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	completion, err := backend.Complete(callCtx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && KindOf(err) != KindTimeout {
			return nil, &BackendError{Provider: provider, Kind: KindTimeout, Err: err}
		}
		return nil, err
	}
	if completion == nil {
		return nil, &ParseError{Reason: "backend returned no completion"}
	}
	return completion, nil
}

// cost prices a call. Unknown models cost nothing and are logged.
func (c *Client) cost(ctx context.Context, model string, inputTokens, outputTokens int64) float64 {
	cost, ok := c.prices.Cost(model, inputTokens, outputTokens)
	if !ok {
		clog.FromContext(ctx).With("model", model).
			Warn("No pricing for judge model, recording zero cost")
		return 0
	}
	return cost
}
