/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Criteria describes what the judge should look for. It is supplied by the
// caller and never modified.
type Criteria struct {
	// Description is the overall evaluation criterion.
	Description string `json:"description" yaml:"description"`

	// Checkpoints are the individually scored criteria, in order.
	Checkpoints []string `json:"checkpoints" yaml:"checkpoints"`

	// Context is optional background for the judge.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Provider names a judge backend implementation.
type Provider string

const (
	// ProviderOpenAI speaks the OpenAI chat-completion protocol.
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic speaks the Anthropic messages protocol.
	ProviderAnthropic Provider = "anthropic"
	// ProviderGoogle speaks the Gemini generate-content protocol.
	ProviderGoogle Provider = "google"
)

// Config selects and tunes the judge for one call.
type Config struct {
	// Name labels the configuration in comparisons. Defaults to Model.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Provider selects the backend. Empty means the client's default.
	Provider Provider `json:"provider,omitempty" yaml:"provider,omitempty"`

	// Model is the judge model identifier.
	Model string `json:"model" yaml:"model"`

	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// PromptTemplate is the user prompt with {criteria}, {response},
	// {checkpoints}, {context} and {schema} placeholders. Empty means DefaultPromptTemplate.
	PromptTemplate string `json:"prompt_template,omitempty" yaml:"prompt_template,omitempty"`

	// MaxTokens caps the judge's output.
	MaxTokens int64 `json:"max_tokens" yaml:"max_tokens"`

	// Timeout bounds each backend call. Zero means no per-call timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Threshold is the pass mark. Zero means the client's default.
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// Label returns Name, or Model when Name is unset.
func (c Config) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Model
}

// ContentBlock is one block of the response under test.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the output of the system under test: an ordered sequence of content blocks.
type Response struct {
	Content []ContentBlock `json:"content"`
}

// TextResponse wraps a single string as a Response.
func TextResponse(text string) Response {
	return Response{Content: []ContentBlock{{Type: "text", Text: text}}}
}

// Text joins the text blocks with newlines. Blocks with an empty type are treated as text.
func (r Response) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, b := range r.Content {
		if b.Type == "" || b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// CheckpointScore is the judge's verdict on one checkpoint.
type CheckpointScore struct {
	Score     float64 `json:"score"`
	Evidence  string  `json:"evidence,omitempty"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// Metadata describes how a Result was produced.
type Metadata struct {
	Model     string        `json:"model"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`

	// Attempt is the sample number assigned by the caller.
	Attempt int `json:"attempt"`
	// BackendAttempts counts backend calls including retries.
	BackendAttempts int `json:"backend_attempts,omitempty"`
}

// EvidenceValidation annotates a Result with the outcome of evidence checks.
// It never changes the numeric score.
type EvidenceValidation struct {
	Validated       bool     `json:"validated"`
	MissingEvidence []string `json:"missing_evidence,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Result is the outcome of one judge call.
type Result struct {
	Score       float64                    `json:"score"`
	Passed      bool                       `json:"passed"`
	Reasoning   string                     `json:"reasoning"`
	Checkpoints map[string]CheckpointScore `json:"checkpoints"`
	Metadata    Metadata                   `json:"metadata"`
	Evidence    *EvidenceValidation        `json:"evidence,omitempty"`

	// Error holds the failure text when the result was degraded.
	Error string `json:"error,omitempty"`
}

// Degraded reports whether the result stands in for a failed call.
func (r *Result) Degraded() bool {
	return r.Error != ""
}

// ApplyThreshold re-derives Passed from threshold.
func (r *Result) ApplyThreshold(threshold float64) {
	r.Passed = !r.Degraded() && r.Score >= threshold
}

// CheckpointNames returns the checkpoint names in sorted order.
func (r *Result) CheckpointNames() []string {
	names := make([]string, 0, len(r.Checkpoints))
	for name := range r.Checkpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns a formatted representation of the result
func (r *Result) String() string {
	var sb strings.Builder

	verdict := "FAIL"
	if r.Passed {
		verdict = "PASS"
	}
	sb.WriteString(fmt.Sprintf("Score: %.1f (%s)", r.Score, verdict))

	if r.Reasoning != "" {
		sb.WriteString(fmt.Sprintf(" - %s", r.Reasoning))
	}
	sb.WriteString("\n")

	for _, name := range r.CheckpointNames() {
		cp := r.Checkpoints[name]
		sb.WriteString(fmt.Sprintf("  %s: %.1f\n", name, cp.Score))
		if cp.Evidence != "" {
			sb.WriteString(fmt.Sprintf("    Evidence: %s\n", cp.Evidence))
		}
	}

	if r.Evidence != nil {
		for _, missing := range r.Evidence.MissingEvidence {
			sb.WriteString(fmt.Sprintf("  Missing evidence: %s\n", missing))
		}
		for _, warning := range r.Evidence.Warnings {
			sb.WriteString(fmt.Sprintf("  Warning: %s\n", warning))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// Interface is the contract for single-call judges.
type Interface interface {
	// Evaluate scores response against criteria with one judge call.
	// attempt is the caller's sample number and is recorded in the metadata.
	Evaluate(ctx context.Context, response Response, criteria Criteria, cfg Config, attempt int) (*Result, error)
}
