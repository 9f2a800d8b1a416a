/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the evaluation settings from the environment and
// builds the judge client, store, runner and matrix from them.
//
// Configuration is loaded once and passed to constructors explicitly:
//
//	cfg, err := config.Load(ctx)
//	if err != nil {
//		clog.FatalContextf(ctx, "loading config: %v", err)
//	}
//	r, closeFn, err := cfg.NewRunner(ctx)
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"chainguard.dev/judgeval/consistency"
	"chainguard.dev/judgeval/judge"
	"chainguard.dev/judgeval/pricing"
	"chainguard.dev/judgeval/retry"
	"chainguard.dev/judgeval/runner"
	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds every setting. Field tags name the environment variables.
type Config struct {
	// Judge backend.
	Provider        string        `env:"JUDGE_PROVIDER,default=openai" validate:"oneof=openai anthropic google"`
	Model           string        `env:"JUDGE_MODEL,default=gpt-4o" validate:"required"`
	Temperature     float64       `env:"JUDGE_TEMPERATURE,default=0.1" validate:"gte=0,lte=2"`
	MaxTokens       int64         `env:"JUDGE_MAX_TOKENS,default=2000" validate:"gt=0"`
	Timeout         time.Duration `env:"JUDGE_TIMEOUT,default=60s" validate:"gte=0"`
	PromptFile      string        `env:"JUDGE_PROMPT_FILE"`
	BaseURL         string        `env:"JUDGE_BASE_URL,default=http://localhost:8317/v1" validate:"omitempty,url"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	VertexProject   string        `env:"JUDGE_VERTEX_PROJECT"`
	VertexRegion    string        `env:"JUDGE_VERTEX_REGION,default=us-east5"`
	PricingFile     string        `env:"JUDGE_PRICING_FILE"`

	RateLimit float64 `env:"JUDGE_RATE_LIMIT,default=0" validate:"gte=0"`
	RateBurst int     `env:"JUDGE_RATE_BURST,default=1" validate:"gte=1"`

	RetryAttempts int           `env:"JUDGE_RETRY_ATTEMPTS,default=3" validate:"gte=1"`
	RetryBackoff  time.Duration `env:"JUDGE_RETRY_BACKOFF,default=1s" validate:"gte=0"`
	RetryMaxWait  time.Duration `env:"JUDGE_RETRY_MAX_BACKOFF,default=10s" validate:"gte=0"`

	Evidence            string  `env:"JUDGE_EVIDENCE,default=off" validate:"oneof=off exact similarity"`
	SimilarityThreshold float64 `env:"JUDGE_SIMILARITY_THRESHOLD,default=0.8" validate:"gt=0,lte=1"`

	// Scoring.
	Threshold         float64 `env:"JUDGE_THRESHOLD,default=70" validate:"gte=0,lte=100"`
	Retries           int     `env:"JUDGE_RETRIES,default=3" validate:"gte=1"`
	MaxSamples        int     `env:"JUDGE_MAX_SAMPLES,default=3" validate:"gte=1"`
	VarianceThreshold float64 `env:"JUDGE_VARIANCE_THRESHOLD,default=15" validate:"gte=0"`
	Selection         string  `env:"JUDGE_SELECTION,default=median" validate:"oneof=median mean-closest"`
	Retesting         bool    `env:"JUDGE_RETESTING,default=true"`
	BandWidth         float64 `env:"JUDGE_BAND_WIDTH,default=5" validate:"gte=0,lte=50"`
	MaxRetests        int     `env:"JUDGE_MAX_RETESTS,default=2" validate:"gte=0"`
	Borderline        string  `env:"JUDGE_BORDERLINE,default=median" validate:"oneof=median optimistic pessimistic"`
	Concurrency       int     `env:"JUDGE_CONCURRENCY,default=1" validate:"gte=1"`

	// Policy.
	Strategy     string  `env:"JUDGE_STRATEGY,default=always" validate:"oneof=always never percentage critical"`
	SampleRate   float64 `env:"JUDGE_SAMPLE_RATE,default=1" validate:"gte=0,lte=1"`
	Budget       float64 `env:"JUDGE_BUDGET,default=0" validate:"gte=0"`
	BudgetAction string  `env:"JUDGE_BUDGET_ACTION,default=warn" validate:"oneof=warn abort"`
	SkipOnError  bool    `env:"JUDGE_SKIP_ON_ERROR,default=false"`
	Strict       bool    `env:"JUDGE_STRICT,default=false"`
	Verbose      bool    `env:"JUDGE_VERBOSE,default=false"`
	RegistryFile string  `env:"JUDGE_REGISTRY"`

	// MatrixModels lists the judges compared by NewMatrix, comma separated.
	MatrixModels []string `env:"JUDGE_MATRIX_MODELS"`

	// Storage.
	Storage        string `env:"JUDGE_STORAGE,default=file" validate:"oneof=file badger none"`
	ResultsDir     string `env:"JUDGE_RESULTS_DIR,default=eval-results" validate:"required_if=Storage file"`
	BadgerPath     string `env:"JUDGE_BADGER_PATH"`
	Profile        string `env:"JUDGE_PROFILE,default=default"`
	PackageVersion string `env:"JUDGE_PACKAGE_VERSION"`
	RepoDir        string `env:"JUDGE_REPO_DIR,default=."`

	// Loaded from PromptFile and PricingFile.
	promptTemplate string
	prices         pricing.Table
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads the configuration from l, validates it and loads the files
// it references.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.loadFiles(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.RetryMaxWait < c.RetryBackoff {
		return fmt.Errorf("invalid configuration: JUDGE_RETRY_MAX_BACKOFF (%v) is below JUDGE_RETRY_BACKOFF (%v)", c.RetryMaxWait, c.RetryBackoff)
	}
	return nil
}

func (c *Config) loadFiles() error {
	if c.PromptFile != "" {
		b, err := os.ReadFile(c.PromptFile)
		if err != nil {
			return fmt.Errorf("reading prompt template: %w", err)
		}
		c.promptTemplate = string(b)
	}

	c.prices = pricing.Default()
	if c.PricingFile != "" {
		b, err := os.ReadFile(c.PricingFile)
		if err != nil {
			return fmt.Errorf("reading pricing file: %w", err)
		}
		var overrides pricing.Table
		if err := yaml.Unmarshal(b, &overrides); err != nil {
			return fmt.Errorf("decoding pricing file: %w", err)
		}
		if err := overrides.Validate(); err != nil {
			return err
		}
		c.prices = c.prices.Merge(overrides)
	}
	return nil
}

// Prices returns the model price table.
func (c *Config) Prices() pricing.Table {
	if c.prices == nil {
		return pricing.Default()
	}
	return c.prices
}

// Judge returns the judge call configuration for model, or for the
// configured model when model is empty.
func (c *Config) Judge(model string) judge.Config {
	provider := judge.Provider(c.Provider)
	if model == "" {
		model = c.Model
	} else {
		provider = judge.ProviderForModel(model)
	}
	return judge.Config{
		Provider:       provider,
		Model:          model,
		Temperature:    c.Temperature,
		PromptTemplate: c.promptTemplate,
		MaxTokens:      c.MaxTokens,
		Timeout:        c.Timeout,
		Threshold:      c.Threshold,
	}
}

// Retry returns the backend retry policy.
func (c *Config) Retry() retry.Config {
	return retry.Config{
		MaxAttempts: c.RetryAttempts,
		BaseBackoff: c.RetryBackoff,
		MaxBackoff:  c.RetryMaxWait,
	}
}

// Consistency returns the sampling configuration.
func (c *Config) Consistency() consistency.Config {
	return consistency.Config{
		Retries:           c.Retries,
		MaxSamples:        c.MaxSamples,
		VarianceThreshold: c.VarianceThreshold,
		Selection:         consistency.Selection(c.Selection),
		Retesting:         c.Retesting,
		BandWidth:         c.BandWidth,
		MaxRetests:        c.MaxRetests,
		Borderline:        consistency.BorderlinePolicy(c.Borderline),
		Concurrency:       c.Concurrency,
	}
}

// Runner returns the runner configuration.
func (c *Config) Runner() runner.Config {
	return runner.Config{
		Judge:        c.Judge(""),
		Threshold:    c.Threshold,
		Consistency:  c.Consistency(),
		Strategy:     runner.Strategy(c.Strategy),
		SampleRate:   c.SampleRate,
		BudgetAction: runner.BudgetAction(c.BudgetAction),
		SkipOnError:  c.SkipOnError,
		Strict:       c.Strict,
		Verbose:      c.Verbose,
	}
}

// Registry loads the per-test registry, or returns an empty one when no file
// is configured.
func (c *Config) Registry() (*runner.Registry, error) {
	if c.RegistryFile == "" {
		return &runner.Registry{Tests: map[string]runner.TestSettings{}}, nil
	}
	return runner.LoadRegistryFile(c.RegistryFile)
}
