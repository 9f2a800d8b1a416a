/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"chainguard.dev/judgeval/cost"
	"chainguard.dev/judgeval/evals"
	"chainguard.dev/judgeval/judge"
	"chainguard.dev/judgeval/matrix"
	"chainguard.dev/judgeval/metrics"
	"chainguard.dev/judgeval/runner"
	"chainguard.dev/judgeval/storage"
	"github.com/chainguard-dev/clog"
)

// NewJudgeClient builds a client with a backend for every provider that has
// credentials. The OpenAI-compatible backend is always registered since the
// default endpoint is a local proxy.
func (c *Config) NewJudgeClient(ctx context.Context, opts ...judge.Option) (*judge.Client, error) {
	base := []judge.Option{
		judge.WithDefaultProvider(judge.Provider(c.Provider)),
		judge.WithEndpoint(ctx, judge.ProviderOpenAI, judge.Endpoint{BaseURL: c.BaseURL, APIKey: c.OpenAIAPIKey}),
		judge.WithRetry(c.Retry()),
		judge.WithPricing(c.Prices()),
		judge.WithEvidence(judge.EvidenceMode(c.Evidence), c.SimilarityThreshold),
		judge.WithRateLimit(c.RateLimit, c.RateBurst),
		judge.WithDefaultThreshold(c.Threshold),
		judge.WithMetrics(metrics.NewJudge(metrics.DefaultMeterName)),
	}
	if c.AnthropicAPIKey != "" || c.VertexProject != "" {
		base = append(base, judge.WithEndpoint(ctx, judge.ProviderAnthropic, judge.Endpoint{
			APIKey: c.AnthropicAPIKey, ProjectID: c.VertexProject, Region: c.VertexRegion,
		}))
	}
	if c.GeminiAPIKey != "" || c.VertexProject != "" {
		base = append(base, judge.WithEndpoint(ctx, judge.ProviderGoogle, judge.Endpoint{
			APIKey: c.GeminiAPIKey, ProjectID: c.VertexProject, Region: c.VertexRegion,
		}))
	}
	client, err := judge.New(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating judge client: %w", err)
	}
	return client, nil
}

// NewStore opens the configured record store. The returned function releases
// it. A nil store means storage is disabled.
func (c *Config) NewStore(ctx context.Context) (*storage.Store, func() error, error) {
	nop := func() error { return nil }

	var backend storage.Backend
	closeFn := nop
	switch c.Storage {
	case "none":
		return nil, nop, nil
	case "badger":
		path := c.BadgerPath
		if path == "" {
			path = filepath.Join(c.ResultsDir, "badger")
		}
		b, err := storage.OpenBadger(path)
		if err != nil {
			return nil, nop, err
		}
		backend, closeFn = b, b.Close
	default:
		backend = storage.NewFileBackend(c.ResultsDir)
	}
	clog.FromContext(ctx).With("backend", c.Storage).Debug("Opened evaluation store")

	return storage.New(backend,
		storage.WithProfile(c.Profile),
		storage.WithVersioner(&storage.Versioner{Dir: c.RepoDir, PackageVersion: c.PackageVersion}),
	), closeFn, nil
}

// NewCostTracker returns a tracker enforcing JUDGE_BUDGET.
func (c *Config) NewCostTracker(name string) *cost.Tracker {
	return cost.New(name, c.Prices(), c.Budget)
}

// NewRunner wires a judge client, cost tracker, registry and store into a
// runner. Verdicts are counted under the Prometheus namespace "judgeval".
// The returned function releases the store.
func (c *Config) NewRunner(ctx context.Context, opts ...runner.Option) (*runner.Runner, func() error, error) {
	client, err := c.NewJudgeClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	reg, err := c.Registry()
	if err != nil {
		return nil, nil, err
	}
	store, closeFn, err := c.NewStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	base := []runner.Option{
		runner.WithRegistry(reg),
		runner.WithCostTracker(c.NewCostTracker("runner")),
		runner.WithObserver(func(testName string) evals.Observer {
			return evals.NewMetricsObserver("judgeval/" + testName)
		}),
	}
	if store != nil {
		base = append(base, runner.WithStore(store))
	}
	r, err := runner.New(client, c.Runner(), append(base, opts...)...)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return r, closeFn, nil
}

// ErrNoMatrix is returned by NewMatrix without JUDGE_MATRIX_MODELS.
var ErrNoMatrix = errors.New("JUDGE_MATRIX_MODELS is empty")

// NewMatrix compares the JUDGE_MATRIX_MODELS judges using j.
func (c *Config) NewMatrix(j judge.Interface) (*matrix.Matrix, error) {
	if len(c.MatrixModels) == 0 {
		return nil, ErrNoMatrix
	}
	judges := make([]judge.Config, 0, len(c.MatrixModels))
	for _, model := range c.MatrixModels {
		judges = append(judges, c.Judge(model))
	}
	return matrix.New(j, judges, c.Consistency(), matrix.WithConcurrency(len(judges)))
}
