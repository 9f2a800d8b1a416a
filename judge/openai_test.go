/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJudgeServer serves OpenAI-compatible chat completions. status returns
// the HTTP status for the nth call (1-based).
func fakeJudgeServer(t *testing.T, content string, status func(n int32) int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int64   `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Role != "user" {
			http.Error(w, "expected system and user messages", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if code := status(n); code != http.StatusOK {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   body.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 500, "completion_tokens": 150, "total_tokens": 650},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIBackend(t *testing.T) {
	srv, calls := fakeJudgeServer(t, goodVerdict, func(int32) int { return http.StatusOK })
	backend, err := NewBackend(context.Background(), ProviderOpenAI, Endpoint{BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()})
	require.NoError(t, err)

	got, err := backend.Complete(context.Background(), &CompletionRequest{
		Model: "gpt-4o", System: SystemPrompt, User: "judge this", Temperature: 0.2, MaxTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, goodVerdict, got.Content)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, int64(500), got.InputTokens)
	assert.Equal(t, int64(150), got.OutputTokens)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIBackendClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusTooManyRequests, KindRateLimit},
		{http.StatusInternalServerError, KindServer},
		{http.StatusServiceUnavailable, KindServer},
		{http.StatusUnauthorized, KindUnavailable},
		{http.StatusForbidden, KindUnavailable},
		{http.StatusBadRequest, KindInvalidRequest},
		{http.StatusNotFound, KindInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv, _ := fakeJudgeServer(t, goodVerdict, func(int32) int { return tt.status })
			backend, err := NewBackend(context.Background(), ProviderOpenAI, Endpoint{BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()})
			require.NoError(t, err)

			_, err = backend.Complete(context.Background(), &CompletionRequest{Model: "gpt-4o", User: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestClientAgainstOpenAIServer(t *testing.T) {
	// Two server errors, then a verdict.
	srv, calls := fakeJudgeServer(t, goodVerdict, func(n int32) int {
		if n <= 2 {
			return http.StatusBadGateway
		}
		return http.StatusOK
	})
	c, err := New(
		WithEndpoint(context.Background(), ProviderOpenAI, Endpoint{BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()}),
		WithRetry(fastRetry),
	)
	require.NoError(t, err)

	got, err := c.Evaluate(context.Background(), TextResponse("Hello World"), criteria, Config{Model: "gpt-4o"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, got.Metadata.BackendAttempts)
	assert.InDelta(t, 500.0/1000*0.0025+150.0/1000*0.01, got.Metadata.Cost, 1e-12)
}

func TestConnectionRefusedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	backend, err := NewBackend(context.Background(), ProviderOpenAI, Endpoint{BaseURL: url + "/v1"})
	require.NoError(t, err)
	_, err = backend.Complete(context.Background(), &CompletionRequest{Model: "gpt-4o", User: "x"})
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, IsRetryable(err))
}

func TestProviderForModel(t *testing.T) {
	assert.Equal(t, ProviderAnthropic, ProviderForModel("claude-sonnet-4@20250514"))
	assert.Equal(t, ProviderGoogle, ProviderForModel("Gemini-2.5-pro"))
	assert.Equal(t, ProviderOpenAI, ProviderForModel("gpt-4o"))
	assert.Equal(t, ProviderOpenAI, ProviderForModel("llama-3-70b"))
}
