/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultBaseURL is the local OpenAI-compatible reverse proxy used when no endpoint is configured.
const DefaultBaseURL = "http://localhost:8317/v1"

// CompletionRequest is one chat turn sent to a judge backend.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

// Completion is the backend's reply. Token counts are zero when the backend
// reported no usage.
type Completion struct {
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Backend performs a single, unretried completion call. Implementations must
// return errors classified as *BackendError so the client can decide whether
// to retry.
type Backend interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// Endpoint carries connection settings for a backend.
type Endpoint struct {
	// BaseURL overrides the provider's default API URL.
	BaseURL string
	// APIKey authenticates against the provider.
	APIKey string
	// ProjectID and Region route Anthropic and Gemini calls through Vertex AI
	// instead of API-key authentication.
	ProjectID string
	Region    string
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// NewBackend constructs the backend for provider.
func NewBackend(ctx context.Context, provider Provider, ep Endpoint) (Backend, error) {
	switch provider {
	case ProviderOpenAI, "":
		return newOpenAI(ep), nil
	case ProviderAnthropic:
		return newClaude(ctx, ep)
	case ProviderGoogle:
		return newGoogle(ctx, ep)
	default:
		return nil, fmt.Errorf("unsupported judge provider: %q (expected openai, anthropic or google)", provider)
	}
}

// ProviderForModel infers the provider from a model name: claude-* models use
// Anthropic, gemini-* models use Google, everything else OpenAI.
func ProviderForModel(model string) Provider {
	modelLower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(modelLower, "claude-"):
		return ProviderAnthropic
	case strings.HasPrefix(modelLower, "gemini-"):
		return ProviderGoogle
	default:
		return ProviderOpenAI
	}
}
