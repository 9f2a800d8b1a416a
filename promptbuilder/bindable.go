/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

// Bindable is implemented by request types that know how to fill a prompt.
type Bindable interface {
	Bind(*Prompt) (*Prompt, error)
}
