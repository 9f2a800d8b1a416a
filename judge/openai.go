/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// placeholderAPIKey is sent to OpenAI-compatible proxies that hold the real credentials.
const placeholderAPIKey = "judgeval-placeholder"

// openAI implements Backend using the OpenAI chat-completion protocol
type openAI struct {
	client openai.Client
}

// newOpenAI creates a backend for any OpenAI-compatible endpoint
func newOpenAI(ep Endpoint) *openAI {
	baseURL := ep.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiKey := ep.APIKey
	if apiKey == "" {
		apiKey = placeholderAPIKey
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		// Retries are owned by the client's schedule.
		option.WithMaxRetries(0),
	}
	if ep.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(ep.HTTPClient))
	}

	return &openAI{client: openai.NewClient(opts...)}
}

// Complete implements Backend
func (o *openAI) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, classify(ProviderOpenAI, apiErr.StatusCode, err)
		}
		return nil, classify(ProviderOpenAI, 0, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ParseError{Reason: "judge returned no choices"}
	}

	return &Completion{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
