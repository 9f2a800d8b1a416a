/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pricing holds the static per-model token price table shared by the
// judge client and the cost tracker.
package pricing

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

// Rates is the price of a model in dollars per 1000 tokens.
type Rates struct {
	InputPer1K  float64 `json:"input_per_1k" yaml:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k" yaml:"output_per_1k"`
}

// Table maps a model identifier to its rates.
type Table map[string]Rates

// Default returns the built-in price table.
func Default() Table {
	return Table{
		"gpt-4":             {InputPer1K: 0.03, OutputPer1K: 0.06},
		"gpt-4-turbo":       {InputPer1K: 0.01, OutputPer1K: 0.03},
		"gpt-4o":            {InputPer1K: 0.0025, OutputPer1K: 0.01},
		"gpt-4o-mini":       {InputPer1K: 0.00015, OutputPer1K: 0.0006},
		"gpt-3.5-turbo":     {InputPer1K: 0.0005, OutputPer1K: 0.0015},
		"claude-opus-4":     {InputPer1K: 0.015, OutputPer1K: 0.075},
		"claude-sonnet-4":   {InputPer1K: 0.003, OutputPer1K: 0.015},
		"claude-3-5-sonnet": {InputPer1K: 0.003, OutputPer1K: 0.015},
		"claude-3-5-haiku":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
		"claude-haiku-4":    {InputPer1K: 0.001, OutputPer1K: 0.005},
		"gemini-2.5-pro":    {InputPer1K: 0.00125, OutputPer1K: 0.01},
		"gemini-2.5-flash":  {InputPer1K: 0.0003, OutputPer1K: 0.0025},
		"gemini-2.0-flash":  {InputPer1K: 0.0001, OutputPer1K: 0.0004},
	}
}

// Lookup returns the rates for model. An exact match wins; otherwise the
// longest table key that prefixes the model is used, so dated identifiers
// such as "claude-sonnet-4@20250514" resolve to "claude-sonnet-4".
func (t Table) Lookup(model string) (Rates, bool) {
	if r, ok := t[model]; ok {
		return r, true
	}
	lower := strings.ToLower(model)
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	// Longest first.
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, k := range keys {
		if strings.HasPrefix(lower, strings.ToLower(k)) {
			return t[k], true
		}
	}
	return Rates{}, false
}

// Validate rejects negative rates.
func (t Table) Validate() error {
	for _, model := range slices.Sorted(maps.Keys(t)) {
		if r := t[model]; r.InputPer1K < 0 || r.OutputPer1K < 0 {
			return fmt.Errorf("pricing for %q cannot be negative", model)
		}
	}
	return nil
}

// Cost computes the dollar cost of a call. The boolean is false when the
// model is not in the table, in which case the cost is 0. Negative rates
// count as free, so the cost is never negative.
func (t Table) Cost(model string, inputTokens, outputTokens int64) (float64, bool) {
	r, ok := t.Lookup(model)
	if !ok {
		return 0, false
	}
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	return float64(inputTokens)/1000*max(r.InputPer1K, 0) + float64(outputTokens)/1000*max(r.OutputPer1K, 0), true
}

// Merge returns a copy of t with the entries of overrides applied on top.
func (t Table) Merge(overrides Table) Table {
	out := make(Table, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
