/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// google implements Backend using Google Gemini
type google struct {
	client *genai.Client
}

// newGoogle creates a Gemini backend, using Vertex AI when a project is
// configured and the Gemini API otherwise.
func newGoogle(ctx context.Context, ep Endpoint) (Backend, error) {
	cc := &genai.ClientConfig{HTTPClient: ep.HTTPClient}
	switch {
	case ep.ProjectID != "":
		cc.Project = ep.ProjectID
		cc.Location = ep.Region
		cc.Backend = genai.BackendVertexAI
	case ep.APIKey != "":
		cc.APIKey = ep.APIKey
		cc.Backend = genai.BackendGeminiAPI
	default:
		return nil, &BackendError{Provider: ProviderGoogle, Kind: KindUnavailable, Err: ErrMissingCredentials}
	}
	if ep.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: ep.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, &BackendError{Provider: ProviderGoogle, Kind: KindUnavailable, Err: fmt.Errorf("failed to create Google AI client: %w", err)}
	}
	return &google{client: client}, nil
}

// Complete implements Backend
func (g *google) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      ptr(float32(req.Temperature)),
		ResponseMIMEType: "application/json",
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{
				Text: req.System,
			}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.User), config)
	if err != nil {
		return nil, classifyGoogleError(err)
	}

	out := &Completion{Content: resp.Text(), Model: req.Model}
	if resp.UsageMetadata != nil {
		out.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// classifyGoogleError prefers the API status code and falls back to message
// matching for errors surfaced as plain text by the Vertex transport.
func classifyGoogleError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classify(ProviderGoogle, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return classify(ProviderGoogle, apiErrPtr.Code, err)
	}
	if isRetryableVertexMessage(err) {
		return &BackendError{Provider: ProviderGoogle, Kind: KindServer, Err: err}
	}
	return classify(ProviderGoogle, 0, err)
}

// isRetryableVertexMessage checks if an error message looks like a Vertex AI
// rate limit, quota exhaustion, or transient server error.
func isRetryableVertexMessage(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "Resource exhausted") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "Overloaded") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "Internal error") ||
		strings.Contains(errStr, "server error")
}

func ptr[T any](v T) *T {
	return &v
}
