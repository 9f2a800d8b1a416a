/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"fmt"
	"strings"
	"unicode"
)

// EvidenceMode selects how cited evidence is checked against the response.
type EvidenceMode string

const (
	// EvidenceOff disables evidence validation.
	EvidenceOff EvidenceMode = "off"
	// EvidenceExact requires each citation to appear, case-insensitively, in
	// the response text. Misses are reported in MissingEvidence.
	EvidenceExact EvidenceMode = "exact"
	// EvidenceSimilarity compares word overlap against a threshold. Low
	// overlap is reported as a warning only.
	EvidenceSimilarity EvidenceMode = "similarity"
)

// DefaultSimilarityThreshold is the minimum word overlap in similarity mode.
const DefaultSimilarityThreshold = 0.8

// validateEvidence annotates checkpoints whose evidence cannot be found in
// responseText. Checkpoints without evidence are not checked.
func validateEvidence(mode EvidenceMode, threshold float64, responseText string, checkpoints map[string]CheckpointScore, names []string) *EvidenceValidation {
	if mode == "" || mode == EvidenceOff {
		return nil
	}

	v := &EvidenceValidation{Validated: true}
	haystack := strings.ToLower(responseText)
	var responseWords map[string]struct{}

	for _, name := range names {
		evidence := strings.TrimSpace(checkpoints[name].Evidence)
		if evidence == "" {
			continue
		}
		switch mode {
		case EvidenceExact:
			if !strings.Contains(haystack, strings.ToLower(evidence)) {
				v.Validated = false
				v.MissingEvidence = append(v.MissingEvidence, evidence)
			}
		case EvidenceSimilarity:
			if responseWords == nil {
				responseWords = wordSet(responseText)
			}
			if ratio := overlap(wordSet(evidence), responseWords); ratio < threshold {
				v.Warnings = append(v.Warnings, fmt.Sprintf(
					"checkpoint %q: evidence similarity %.2f is below %.2f", name, ratio, threshold))
			}
		}
	}
	return v
}

// wordSet returns the distinct lowercase words of s.
func wordSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// overlap is the fraction of evidence words present in the response. This is
// a plain word-overlap ratio, not an edit-distance similarity.
func overlap(evidence, response map[string]struct{}) float64 {
	if len(evidence) == 0 {
		return 1
	}
	var found int
	for w := range evidence {
		if _, ok := response[w]; ok {
			found++
		}
	}
	return float64(found) / float64(len(evidence))
}
