/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// AttributeEnricher adds contextual attributes (test name, version key, CI
// profile) to the base attributes (model, provider) before a measurement is
// recorded.
type AttributeEnricher func(ctx context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue

// WithStatic returns an enricher that appends fixed attributes.
func WithStatic(attrs ...attribute.KeyValue) AttributeEnricher {
	return func(_ context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue {
		return append(baseAttrs, attrs...)
	}
}
