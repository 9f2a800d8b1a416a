/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"encoding/json"
	"fmt"

	"chainguard.dev/judgeval/result"
)

// parsedVerdict is the validated content of a judge reply.
type parsedVerdict struct {
	Score       float64
	Reasoning   string
	Checkpoints map[string]CheckpointScore
}

// parseVerdict extracts the verdict object from raw and validates that
// it holds a numeric score, a string reasoning and a checkpoints array.
// Checkpoints without a criterion name are labeled from criteria by position.
func parseVerdict(raw string, criteria Criteria) (*parsedVerdict, error) {
	obj, err := result.Object(raw)
	if err != nil {
		return nil, &ParseError{Reason: err.Error(), Raw: raw}
	}

	var fields map[string]any
	if fields, err = result.Extract[map[string]any](obj); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
	}

	score, ok := number(fields["score"])
	if !ok {
		return nil, &ParseError{Reason: "missing or non-numeric field \"score\"", Raw: raw}
	}
	reasoning, ok := fields["reasoning"].(string)
	if !ok {
		return nil, &ParseError{Reason: "missing or non-string field \"reasoning\"", Raw: raw}
	}
	items, ok := fields["checkpoints"].([]any)
	if !ok {
		return nil, &ParseError{Reason: "missing or non-array field \"checkpoints\"", Raw: raw}
	}

	out := &parsedVerdict{
		Score:       clampScore(score),
		Reasoning:   reasoning,
		Checkpoints: make(map[string]CheckpointScore, len(items)),
	}
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, &ParseError{Reason: fmt.Sprintf("checkpoint %d is not an object", i), Raw: raw}
		}
		cpScore, ok := number(entry["score"])
		if !ok {
			return nil, &ParseError{Reason: fmt.Sprintf("checkpoint %d has no numeric score", i), Raw: raw}
		}
		name, _ := entry["criterion"].(string)
		if name == "" {
			if i < len(criteria.Checkpoints) {
				name = criteria.Checkpoints[i]
			} else {
				name = fmt.Sprintf("checkpoint_%d", i+1)
			}
		}
		evidence, _ := entry["evidence"].(string)
		cpReasoning, _ := entry["reasoning"].(string)
		out.Checkpoints[name] = CheckpointScore{
			Score:     clampScore(cpScore),
			Evidence:  evidence,
			Reasoning: cpReasoning,
		}
	}
	return out, nil
}

// number accepts only JSON numbers, not numeric strings.
func number(v any) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// clampScore confines s to [0, 100].
func clampScore(s float64) float64 {
	return min(max(s, 0), 100)
}
