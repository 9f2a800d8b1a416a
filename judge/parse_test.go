/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *parsedVerdict
		wantErr string
	}{{
		name: "fenced with prose",
		raw:  "Sure!\n```json\n{\"score\": 72.5, \"reasoning\": \"fine\", \"checkpoints\": []}\n```",
		want: &parsedVerdict{Score: 72.5, Reasoning: "fine", Checkpoints: map[string]CheckpointScore{}},
	}, {
		name: "braces in prose outside the fence",
		raw:  "I checked the {greets} rule.\n```json\n{\"score\": 64, \"reasoning\": \"terse\", \"checkpoints\": []}\n```\nSee {polite} too.",
		want: &parsedVerdict{Score: 64, Reasoning: "terse", Checkpoints: map[string]CheckpointScore{}},
	}, {
		name: "scores are clamped",
		raw:  `{"score": 140, "reasoning": "", "checkpoints": [{"criterion": "a", "score": -3}]}`,
		want: &parsedVerdict{Score: 100, Checkpoints: map[string]CheckpointScore{"a": {Score: 0}}},
	}, {
		name: "unnamed checkpoints take criteria names",
		raw:  `{"score": 50, "reasoning": "r", "checkpoints": [{"score": 40}, {"score": 60}, {"score": 70}]}`,
		want: &parsedVerdict{Score: 50, Reasoning: "r", Checkpoints: map[string]CheckpointScore{
			"greets": {Score: 40}, "polite": {Score: 60}, "checkpoint_3": {Score: 70},
		}},
	}, {
		name:    "no object",
		raw:     "score: 80",
		wantErr: "no JSON object",
	}, {
		name:    "invalid JSON",
		raw:     `{"score": 80,}`,
		wantErr: "invalid JSON",
	}, {
		name:    "missing score",
		raw:     `{"reasoning": "r", "checkpoints": []}`,
		wantErr: `"score"`,
	}, {
		name:    "quoted score",
		raw:     `{"score": "80", "reasoning": "r", "checkpoints": []}`,
		wantErr: `"score"`,
	}, {
		name:    "missing reasoning",
		raw:     `{"score": 80, "checkpoints": []}`,
		wantErr: `"reasoning"`,
	}, {
		name:    "checkpoints not an array",
		raw:     `{"score": 80, "reasoning": "r", "checkpoints": {"a": 1}}`,
		wantErr: `"checkpoints"`,
	}, {
		name:    "checkpoint without score",
		raw:     `{"score": 80, "reasoning": "r", "checkpoints": [{"criterion": "a"}]}`,
		wantErr: "checkpoint 0",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerdict(tt.raw, criteria)
			if tt.wantErr != "" {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("parseVerdict() = %v, wanted *ParseError", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error: got = %q, wanted substring %q", err, tt.wantErr)
				}
				if pe.Raw != tt.raw {
					t.Errorf("ParseError.Raw: got = %q", pe.Raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVerdict() = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseVerdict() (-want, +got): %s", diff)
			}
		})
	}
}

func TestBuildPromptDefault(t *testing.T) {
	got, err := buildPrompt("", TextResponse("the answer"), Criteria{Description: "is correct"})
	if err != nil {
		t.Fatalf("buildPrompt() = %v", err)
	}
	for _, want := range []string{"is correct", "the answer", "(none)", `"required"`} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt is missing %q", want)
		}
	}
	if strings.Contains(got, "{schema}") || strings.Contains(got, "{response}") {
		t.Error("prompt has unbound placeholders")
	}
}

func TestBuildPromptBadTemplate(t *testing.T) {
	if _, err := buildPrompt("{unknown} {response}", TextResponse("x"), criteria); err == nil {
		t.Error("buildPrompt() = nil, wanted error for unbound placeholder")
	}
}
