/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package result extracts structured JSON from free-form model output.
package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoObject is returned when the text holds no brace-delimited object.
var ErrNoObject = errors.New("no JSON object found in response")

// ExtractObject returns the outermost brace-delimited span of text: from the
// first '{' to the last '}'. The object may be surrounded by prose or code
// fences; it need not be the whole message.
func ExtractObject(responseText string) (string, error) {
	start := strings.IndexByte(responseText, '{')
	end := strings.LastIndexByte(responseText, '}')
	if start == -1 || end == -1 || end < start {
		return "", ErrNoObject
	}
	return responseText[start : end+1], nil
}

// ExtractJSON extracts JSON content from a text response that may contain markdown code blocks.
// It looks for content between ```json and ``` markers, or returns the input trimmed if no markers are found.
func ExtractJSON(responseText string) string {
	lines := strings.Split(responseText, "\n")
	var jsonBuffer bytes.Buffer
	inJSONBlock := false
	foundJSON := false

	for _, line := range lines {
		if !inJSONBlock && strings.TrimSpace(line) == "```json" {
			inJSONBlock = true
			foundJSON = true
			continue
		}

		if inJSONBlock && strings.TrimSpace(line) == "```" {
			break
		}

		if inJSONBlock {
			if jsonBuffer.Len() > 0 {
				jsonBuffer.WriteString("\n")
			}
			jsonBuffer.WriteString(line)
		}
	}

	if foundJSON {
		return strings.TrimSpace(jsonBuffer.String())
	}

	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	return strings.TrimSpace(responseText)
}

// Object returns the outermost JSON object of responseText, searching a
// ```json fence first so braces in surrounding prose are ignored.
func Object(responseText string) (string, error) {
	return ExtractObject(ExtractJSON(responseText))
}

// Extract finds the JSON object in responseText, as Object does, and decodes
// it into T. Numbers are decoded as json.Number when T is a map, so callers
// can tell a numeric field from a quoted one.
func Extract[T any](responseText string) (T, error) {
	var out T

	obj, err := Object(responseText)
	if err != nil {
		return out, err
	}

	dec := json.NewDecoder(strings.NewReader(obj))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
