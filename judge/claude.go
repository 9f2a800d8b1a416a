/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
)

// claude implements Backend using the Anthropic messages API
type claude struct {
	client anthropic.Client
}

// newClaude creates a Claude backend, authenticated either by API key or,
// when a project is configured, through Vertex AI.
func newClaude(ctx context.Context, ep Endpoint) (Backend, error) {
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	switch {
	case ep.ProjectID != "":
		opts = append(opts, vertex.WithGoogleAuth(ctx, ep.Region, ep.ProjectID))
	case ep.APIKey != "":
		opts = append(opts, option.WithAPIKey(ep.APIKey))
	default:
		return nil, &BackendError{Provider: ProviderAnthropic, Kind: KindUnavailable, Err: ErrMissingCredentials}
	}
	if ep.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(ep.BaseURL))
	}
	if ep.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(ep.HTTPClient))
	}

	return &claude{client: anthropic.NewClient(opts...)}, nil
}

// Complete implements Backend
func (c *claude) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, classify(ProviderAnthropic, apiErr.StatusCode, err)
		}
		return nil, classify(ProviderAnthropic, 0, err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &Completion{
		Content:      sb.String(),
		Model:        string(message.Model),
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}, nil
}
