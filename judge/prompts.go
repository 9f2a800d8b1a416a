/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"chainguard.dev/judgeval/promptbuilder"
	"chainguard.dev/judgeval/schema"
)

// SystemPrompt is sent as the system message of every judge call.
const SystemPrompt = `You are an impartial evaluator. You score a response against explicit criteria and cite evidence quoted verbatim from the response. You always answer with a single JSON object.`

// DefaultPromptTemplate is used when a Config has no PromptTemplate.
const DefaultPromptTemplate = `<task>
Evaluate the response below against the criteria and score each checkpoint.
</task>

<criteria>
{criteria}
</criteria>

<checkpoints>
{checkpoints}
</checkpoints>

<context>
{context}
</context>

<response>
{response}
</response>

<instructions>
1. Score each checkpoint from 0 to 100
2. Quote the exact text from the response that supports each checkpoint score as evidence
3. Give an overall score from 0 to 100 and explain it
</instructions>

<output_format>
Return a JSON object matching this schema:
{schema}

Example:
{"score": 85, "reasoning": "...", "checkpoints": [{"criterion": "...", "score": 90, "evidence": "...", "reasoning": "..."}]}
</output_format>

Respond with only the JSON object, no additional text.`

// verdict documents the reply format. It is only used to derive the {schema} text.
type verdict struct {
	Score       float64             `json:"score" jsonschema:"required,minimum=0,maximum=100"`
	Reasoning   string              `json:"reasoning" jsonschema:"required"`
	Checkpoints []checkpointVerdict `json:"checkpoints" jsonschema:"required"`
}

type checkpointVerdict struct {
	Criterion string  `json:"criterion" jsonschema:"required"`
	Score     float64 `json:"score" jsonschema:"required,minimum=0,maximum=100"`
	Evidence  string  `json:"evidence,omitempty"`
	Reasoning string  `json:"reasoning,omitempty"`
}

var verdictSchema = sync.OnceValues(schema.JSON[verdict])

// formatCheckpoints renders checkpoints as a numbered list.
func formatCheckpoints(checkpoints []string) string {
	if len(checkpoints) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for i, cp := range checkpoints {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, cp))
	}
	return sb.String()
}

// request binds one evaluation into a prompt template.
type request struct {
	response Response
	criteria Criteria
}

var _ promptbuilder.Bindable = (*request)(nil)

// Bind implements promptbuilder.Bindable. {criteria_json} and {criteria_yaml}
// render the whole Criteria. Any other placeholder is kept verbatim.
func (r *request) Bind(prompt *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	contextText := r.criteria.Context
	if contextText == "" {
		contextText = "(none)"
	}
	text := map[string]func() (string, error){
		"criteria":    func() (string, error) { return r.criteria.Description, nil },
		"response":    func() (string, error) { return r.response.Text(), nil },
		"checkpoints": func() (string, error) { return formatCheckpoints(r.criteria.Checkpoints), nil },
		"context":     func() (string, error) { return contextText, nil },
		"schema":      verdictSchema,
	}

	names := slices.Sorted(maps.Keys(prompt.GetBindings()))
	var err error
	for _, name := range names {
		switch name {
		case "criteria_json":
			prompt, err = prompt.BindJSON(name, r.criteria)
		case "criteria_yaml":
			prompt, err = prompt.BindYAML(name, r.criteria)
		default:
			render, ok := text[name]
			if !ok {
				prompt, err = prompt.BindString(name, "{"+name+"}")
				break
			}
			value, verr := render()
			if verr != nil {
				return nil, fmt.Errorf("rendering %s: %w", name, verr)
			}
			prompt, err = prompt.BindString(name, value)
		}
		if err != nil {
			return nil, err
		}
	}
	return prompt, nil
}

// buildPrompt renders template (or the default) for one evaluation.
func buildPrompt(template string, response Response, criteria Criteria) (string, error) {
	if template == "" {
		template = DefaultPromptTemplate
	}
	prompt, err := promptbuilder.NewPrompt(template)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}
	bound, err := (&request{response: response, criteria: criteria}).Bind(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to bind request to prompt: %w", err)
	}
	return bound.Build()
}
