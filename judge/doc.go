/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package judge issues a single evaluation call to an LLM judge and turns the
// reply into a validated, costed Result.
//
// # Overview
//
// The judge package provides:
//   - The data model shared by the rest of the module (Criteria, Config, Result)
//   - A Backend abstraction with OpenAI-compatible, Anthropic and Gemini implementations
//   - Prompt binding of {criteria}, {response}, {checkpoints}, {context} and {schema}
//   - Bounded retry of transient backend failures
//   - Outer-brace JSON extraction and strict verdict validation
//   - Evidence validation of the judge's citations against the evaluated response
//   - Per-call cost from a static price table
//
// # Usage
//
//	backend, err := judge.NewBackend(ctx, judge.ProviderOpenAI, judge.Endpoint{
//		BaseURL: "http://localhost:8317/v1",
//	})
//	if err != nil {
//		return err
//	}
//	client := judge.New(judge.WithBackend(judge.ProviderOpenAI, backend))
//
//	res, err := client.Evaluate(ctx, judge.TextResponse(output), judge.Criteria{
//		Description: "The answer explains the retry policy",
//		Checkpoints: []string{"mentions backoff", "mentions the attempt cap"},
//	}, judge.Config{Model: "gpt-4-turbo", Temperature: 0.1}, 1)
//
// # Scoring
//
// Judges score responses on a scale of 0 to 100. Scores outside the range are
// clamped. Passed is always derived from the active threshold.
//
// # Failure handling
//
// Retryable failures (timeouts, rate limits, 5xx, connection errors) are
// retried with exponential backoff. Unavailable backends, rejected requests
// and malformed judge output fail immediately. With graceful degradation
// enabled, Evaluate returns a zero-score failed Result carrying the error
// text instead of an error.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package judge
