/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"chainguard.dev/judgeval/pricing"
	"chainguard.dev/judgeval/retry"
	"github.com/google/go-cmp/cmp"
)

type reply struct {
	completion *Completion
	err        error
}

// fakeBackend replays canned replies; the last one repeats.
type fakeBackend struct {
	mu       sync.Mutex
	replies  []reply
	requests []*CompletionRequest
	block    bool
}

func (f *fakeBackend) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, req)
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r := f.replies[min(n, len(f.replies)-1)]
	return r.completion, r.err
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func ok(content string, in, out int64) reply {
	return reply{completion: &Completion{Content: content, InputTokens: in, OutputTokens: out}}
}

func failure(kind Kind) reply {
	return reply{err: &BackendError{Provider: ProviderOpenAI, Kind: kind, Err: errors.New(string(kind))}}
}

var fastRetry = retry.Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

const goodVerdict = `Here is my evaluation:
{"score": 85, "reasoning": "Clear and complete", "checkpoints": [
  {"criterion": "greets", "score": 90, "evidence": "Hello World", "reasoning": "says hello"},
  {"criterion": "polite", "score": 80}
]}
Thanks!`

var criteria = Criteria{
	Description: "The reply greets the user politely",
	Checkpoints: []string{"greets", "polite"},
}

func newTestClient(t *testing.T, backend Backend, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBackend(ProviderOpenAI, backend), WithRetry(fastRetry)}, opts...)
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return c
}

func TestEvaluateSuccess(t *testing.T) {
	backend := &fakeBackend{replies: []reply{ok(goodVerdict, 1000, 500)}}
	c := newTestClient(t, backend)

	got, err := c.Evaluate(context.Background(), TextResponse("hello world, nice to meet you"), criteria,
		Config{Model: "gpt-4", Temperature: 0.1, MaxTokens: 1024}, 2)
	if err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}

	if got.Score != 85 || !got.Passed || got.Reasoning != "Clear and complete" {
		t.Errorf("verdict: got = %v", got)
	}
	wantCheckpoints := map[string]CheckpointScore{
		"greets": {Score: 90, Evidence: "Hello World", Reasoning: "says hello"},
		"polite": {Score: 80},
	}
	if diff := cmp.Diff(wantCheckpoints, got.Checkpoints); diff != "" {
		t.Errorf("checkpoints (-want, +got): %s", diff)
	}
	if got.Metadata.Model != "gpt-4" || got.Metadata.Attempt != 2 || got.Metadata.BackendAttempts != 1 {
		t.Errorf("metadata: got = %+v", got.Metadata)
	}
	if got.Metadata.InputTokens != 1000 || got.Metadata.OutputTokens != 500 {
		t.Errorf("tokens: got = %d/%d", got.Metadata.InputTokens, got.Metadata.OutputTokens)
	}
	// gpt-4: 1000/1000*0.03 + 500/1000*0.06
	if diff := got.Metadata.Cost - 0.06; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost: got = %v, wanted = 0.06", got.Metadata.Cost)
	}
	if got.Evidence != nil {
		t.Errorf("evidence should be nil when validation is off: %+v", got.Evidence)
	}

	req := backend.requests[0]
	if req.System != SystemPrompt || req.Model != "gpt-4" || req.MaxTokens != 1024 {
		t.Errorf("request: got = %+v", req)
	}
	for _, want := range []string{criteria.Description, "1. greets\n2. polite", "hello world, nice to meet you", `"score"`} {
		if !strings.Contains(req.User, want) {
			t.Errorf("prompt is missing %q", want)
		}
	}
}

func TestEvaluateCostArithmetic(t *testing.T) {
	backend := &fakeBackend{replies: []reply{ok(goodVerdict, 500, 150)}}
	c := newTestClient(t, backend, WithPricing(pricing.Table{
		"test-model": {InputPer1K: 0.01, OutputPer1K: 0.03},
	}))

	got, err := c.Evaluate(context.Background(), TextResponse("x"), criteria, Config{Model: "test-model"}, 1)
	if err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}
	if diff := got.Metadata.Cost - 0.0095; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("cost: got = %v, wanted = 0.0095", got.Metadata.Cost)
	}
}

func TestEvaluateUnknownModelCostsNothing(t *testing.T) {
	backend := &fakeBackend{replies: []reply{ok(goodVerdict, 500, 150)}}
	c := newTestClient(t, backend, WithPricing(pricing.Table{}))

	got, err := c.Evaluate(context.Background(), TextResponse("x"), criteria, Config{Model: "mystery"}, 1)
	if err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}
	if got.Metadata.Cost != 0 {
		t.Errorf("cost: got = %v, wanted = 0", got.Metadata.Cost)
	}
}

func TestEvaluateRetries(t *testing.T) {
	tests := []struct {
		name      string
		replies   []reply
		wantCalls int
		wantErr   bool
		wantKind  Kind
	}{{
		name:      "transient then success",
		replies:   []reply{failure(KindServer), failure(KindRateLimit), ok(goodVerdict, 1, 1)},
		wantCalls: 3,
	}, {
		name:      "network then success",
		replies:   []reply{failure(KindNetwork), ok(goodVerdict, 1, 1)},
		wantCalls: 2,
	}, {
		name:      "exhausted",
		replies:   []reply{failure(KindServer)},
		wantCalls: 3,
		wantErr:   true,
		wantKind:  KindServer,
	}, {
		name:      "unavailable fails fast",
		replies:   []reply{failure(KindUnavailable)},
		wantCalls: 1,
		wantErr:   true,
		wantKind:  KindUnavailable,
	}, {
		name:      "invalid request fails fast",
		replies:   []reply{failure(KindInvalidRequest)},
		wantCalls: 1,
		wantErr:   true,
		wantKind:  KindInvalidRequest,
	}, {
		name:      "malformed output is not retried",
		replies:   []reply{ok("I refuse to answer in JSON", 10, 5)},
		wantCalls: 1,
		wantErr:   true,
		wantKind:  KindMalformedOutput,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{replies: tt.replies}
			c := newTestClient(t, backend)

			got, err := c.Evaluate(context.Background(), TextResponse("Hello World"), criteria, Config{Model: "gpt-4o"}, 1)
			if backend.calls() != tt.wantCalls {
				t.Errorf("backend calls: got = %d, wanted = %d", backend.calls(), tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if KindOf(err) != tt.wantKind {
					t.Errorf("KindOf() = %q, wanted = %q", KindOf(err), tt.wantKind)
				}
				return
			}
			if got.Metadata.BackendAttempts != tt.wantCalls {
				t.Errorf("BackendAttempts: got = %d, wanted = %d", got.Metadata.BackendAttempts, tt.wantCalls)
			}
		})
	}
}

func TestEvaluatePerCallTimeoutIsRetried(t *testing.T) {
	backend := &fakeBackend{block: true}
	c := newTestClient(t, backend, WithRetry(retry.Config{MaxAttempts: 2, BaseBackoff: time.Millisecond}))

	_, err := c.Evaluate(context.Background(), TextResponse("x"), criteria,
		Config{Model: "gpt-4o", Timeout: 10 * time.Millisecond}, 1)
	if KindOf(err) != KindTimeout {
		t.Fatalf("Evaluate() = %v, wanted a timeout", err)
	}
	if backend.calls() != 2 {
		t.Errorf("backend calls: got = %d, wanted = 2", backend.calls())
	}
}

func TestEvaluateCanceledIsNotDegraded(t *testing.T) {
	backend := &fakeBackend{block: true}
	c := newTestClient(t, backend, WithGracefulDegradation(true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Evaluate(ctx, TextResponse("x"), criteria, Config{Model: "gpt-4o"}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() = %v, wanted context.Canceled", err)
	}
}

func TestEvaluateGracefulDegradation(t *testing.T) {
	backend := &fakeBackend{replies: []reply{ok(`{"score": "high", "reasoning": "", "checkpoints": []}`, 40, 10)}}
	c := newTestClient(t, backend, WithGracefulDegradation(true))

	got, err := c.Evaluate(context.Background(), TextResponse("x"), criteria, Config{Model: "gpt-4o"}, 3)
	if err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}
	if got.Score != 0 || got.Passed || !got.Degraded() {
		t.Errorf("degraded result: got = %+v", got)
	}
	if !strings.HasPrefix(got.Reasoning, "Evaluation failed: malformed judge output") {
		t.Errorf("Reasoning: got = %q", got.Reasoning)
	}
	// The call returned usage, so it is still charged.
	if got.Metadata.InputTokens != 40 || got.Metadata.Cost <= 0 || got.Metadata.Attempt != 3 {
		t.Errorf("metadata: got = %+v", got.Metadata)
	}
}

func TestEvaluateNoBackend(t *testing.T) {
	c, err := New(WithGracefulDegradation(false))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	_, err = c.Evaluate(context.Background(), TextResponse("x"), criteria, Config{Model: "claude-sonnet-4", Provider: ProviderAnthropic}, 1)
	if !errors.Is(err, ErrNoBackend) || !IsUnavailable(err) {
		t.Errorf("Evaluate() = %v, wanted ErrNoBackend", err)
	}
}

func TestEvaluateThreshold(t *testing.T) {
	tests := []struct {
		name       string
		clientOpt  Option
		cfgThresh  float64
		wantPassed bool
	}{
		{name: "default 70", clientOpt: WithDefaultThreshold(70), wantPassed: true},
		{name: "client default 90", clientOpt: WithDefaultThreshold(90), wantPassed: false},
		{name: "config overrides", clientOpt: WithDefaultThreshold(90), cfgThresh: 85, wantPassed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeBackend{replies: []reply{ok(goodVerdict, 1, 1)}}, tt.clientOpt)
			got, err := c.Evaluate(context.Background(), TextResponse("x"), criteria, Config{Model: "gpt-4o", Threshold: tt.cfgThresh}, 1)
			if err != nil {
				t.Fatalf("Evaluate() = %v", err)
			}
			if got.Passed != tt.wantPassed {
				t.Errorf("Passed: got = %v, wanted = %v", got.Passed, tt.wantPassed)
			}
		})
	}
}

func TestEvaluateEvidence(t *testing.T) {
	verdict := `{"score": 75, "reasoning": "ok", "checkpoints": [
	  {"criterion": "quote", "score": 80, "evidence": "THE QUICK brown fox"},
	  {"criterion": "invented", "score": 70, "evidence": "a purple elephant danced"},
	  {"criterion": "none", "score": 60}
	]}`
	response := Response{Content: []ContentBlock{
		{Type: "text", Text: "The quick brown fox"},
		{Type: "image", Text: "a purple elephant danced"},
		{Type: "text", Text: "jumps over the lazy dog."},
	}}

	t.Run("exact", func(t *testing.T) {
		c := newTestClient(t, &fakeBackend{replies: []reply{ok(verdict, 1, 1)}}, WithEvidence(EvidenceExact, 0))
		got, err := c.Evaluate(context.Background(), response, criteria, Config{Model: "gpt-4o"}, 1)
		if err != nil {
			t.Fatalf("Evaluate() = %v", err)
		}
		want := &EvidenceValidation{MissingEvidence: []string{"a purple elephant danced"}}
		if diff := cmp.Diff(want, got.Evidence); diff != "" {
			t.Errorf("evidence (-want, +got): %s", diff)
		}
		if got.Score != 75 || !got.Passed {
			t.Errorf("evidence must not change the verdict: got = %v", got)
		}
	})

	t.Run("similarity", func(t *testing.T) {
		c := newTestClient(t, &fakeBackend{replies: []reply{ok(verdict, 1, 1)}}, WithEvidence(EvidenceSimilarity, 0.5))
		got, err := c.Evaluate(context.Background(), response, criteria, Config{Model: "gpt-4o"}, 1)
		if err != nil {
			t.Fatalf("Evaluate() = %v", err)
		}
		if !got.Evidence.Validated || len(got.Evidence.MissingEvidence) != 0 {
			t.Errorf("similarity findings are soft: got = %+v", got.Evidence)
		}
		if len(got.Evidence.Warnings) != 1 || !strings.Contains(got.Evidence.Warnings[0], `"invented"`) {
			t.Errorf("warnings: got = %v", got.Evidence.Warnings)
		}
	})
}

func TestEvaluateCustomTemplate(t *testing.T) {
	backend := &fakeBackend{replies: []reply{ok(goodVerdict, 1, 1)}}
	c := newTestClient(t, backend)

	template := `Judge {response} against {criteria}. Reply like {"score": 0}.`
	if _, err := c.Evaluate(context.Background(), TextResponse("hi"), criteria, Config{Model: "gpt-4o", PromptTemplate: template}, 1); err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}
	want := `Judge hi against The reply greets the user politely. Reply like {"score": 0}.`
	if got := backend.requests[0].User; got != want {
		t.Errorf("prompt: got = %q, wanted = %q", got, want)
	}
}

func TestEvaluateUnparsableReplyKeepsUsage(t *testing.T) {
	backend := &fakeBackend{replies: []reply{ok("I would give it an 85.", 500, 150)}}
	c := newTestClient(t, backend, WithPricing(pricing.Table{
		"test-model": {InputPer1K: 0.01, OutputPer1K: 0.03},
	}))

	_, err := c.Evaluate(context.Background(), TextResponse("x"), criteria, Config{Model: "test-model"}, 3)
	if KindOf(err) != KindMalformedOutput {
		t.Fatalf("Evaluate() = %v, wanted malformed output", err)
	}
	md, ok := UsageOf(err)
	if !ok {
		t.Fatal("UsageOf() = false, wanted the billed usage")
	}
	if md.Model != "test-model" || md.Attempt != 3 || md.InputTokens != 500 || md.OutputTokens != 150 {
		t.Errorf("usage: got = %+v", md)
	}
	if diff := md.Cost - 0.0095; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("cost: got = %v, wanted = 0.0095", md.Cost)
	}

	if _, ok := UsageOf(failure(KindServer).err); ok {
		t.Error("UsageOf() = true for a call that never returned")
	}
}

func TestEvaluateTemplatePassesUnknownPlaceholders(t *testing.T) {
	backend := &fakeBackend{replies: []reply{ok(goodVerdict, 1, 1)}}
	c := newTestClient(t, backend)

	template := "Criteria: {criteria}\nResponse: {response}\nReply with {score} and {reasoning}."
	if _, err := c.Evaluate(context.Background(), TextResponse("hi"), criteria, Config{Model: "gpt-4o", PromptTemplate: template}, 1); err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}
	want := "Criteria: The reply greets the user politely\nResponse: hi\nReply with {score} and {reasoning}."
	if got := backend.requests[0].User; got != want {
		t.Errorf("prompt: got = %q, wanted = %q", got, want)
	}
}

func TestEvaluateTemplateStructuredCriteria(t *testing.T) {
	backend := &fakeBackend{replies: []reply{ok(goodVerdict, 1, 1)}}
	c := newTestClient(t, backend)

	template := "As JSON:\n{criteria_json}\nAs YAML:\n{criteria_yaml}\nResponse: {response}"
	if _, err := c.Evaluate(context.Background(), TextResponse("hi"), criteria, Config{Model: "gpt-4o", PromptTemplate: template}, 1); err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}
	got := backend.requests[0].User
	for _, want := range []string{
		`"description": "The reply greets the user politely"`,
		"description: The reply greets the user politely",
		"- polite",
		"Response: hi",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt is missing %q:\n%s", want, got)
		}
	}
}

func TestNewOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"nil backend", WithBackend(ProviderOpenAI, nil)},
		{"bad evidence mode", WithEvidence("fuzzy", 0.5)},
		{"bad similarity threshold", WithEvidence(EvidenceSimilarity, 1.5)},
		{"bad retry", WithRetry(retry.Config{})},
		{"negative pricing", WithPricing(pricing.Table{"m": {InputPer1K: -1}})},
		{"negative rate", WithRateLimit(-1, 1)},
		{"bad threshold", WithDefaultThreshold(101)},
		{"unknown provider", WithEndpoint(context.Background(), "cohere", Endpoint{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opt); err == nil {
				t.Error("New() = nil, wanted error")
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	backend := &fakeBackend{replies: []reply{ok(goodVerdict, 1, 1)}}
	c := newTestClient(t, backend, WithRateLimit(1000, 1))
	for i := range 3 {
		if _, err := c.Evaluate(context.Background(), TextResponse("x"), criteria, Config{Model: "gpt-4o"}, i+1); err != nil {
			t.Fatalf("Evaluate() = %v", err)
		}
	}
	if backend.calls() != 3 {
		t.Errorf("backend calls: got = %d, wanted = 3", backend.calls())
	}
}
