/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"strings"
	"unicode"
)

// resolveFunc is a callback that provides a replacement for a binding name
type resolveFunc func(name string) (string, error)

// walkTemplate tokenizes the template and calls resolve for each {name} binding.
// Braces that do not enclose a valid identifier (for example literal JSON in an
// output-format section) are copied through unchanged.
func walkTemplate(template string, resolve resolveFunc) (string, error) {
	var result strings.Builder

	for len(template) > 0 {
		start := strings.IndexByte(template, '{')
		if start == -1 {
			result.WriteString(template)
			break
		}
		result.WriteString(template[:start])

		end := strings.IndexByte(template[start+1:], '}')
		if end == -1 {
			// No closing brace anywhere after this point.
			result.WriteString(template[start:])
			break
		}
		end += start + 1

		name := template[start+1 : end]
		if !isValidIdentifier(name) {
			result.WriteByte('{')
			template = template[start+1:]
			continue
		}

		replacement, err := resolve(name)
		if err != nil {
			return "", err
		}
		result.WriteString(replacement)
		template = template[end+1:]
	}

	return result.String(), nil
}

// isValidIdentifier checks if a string is a valid binding identifier
// Valid identifiers must start with a letter and contain only letters, digits, and underscores
func isValidIdentifier(s string) bool {
	if len(s) == 0 {
		return false
	}
	runes := []rune(s)
	if !unicode.IsLetter(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
