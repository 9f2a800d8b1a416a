/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestJudgeNoopMeter(t *testing.T) {
	m := NewJudgeWithMeter(noop.NewMeterProvider().Meter("test"))

	var enriched int
	m.SetAttributeEnricher(func(_ context.Context, attrs []attribute.KeyValue) []attribute.KeyValue {
		enriched++
		return append(attrs, attribute.String("test", "greeting"))
	})

	ctx := context.Background()
	m.RecordTokens(ctx, "gpt-4o", 500, 150)
	m.RecordCost(ctx, "gpt-4o", 0.0095)
	m.RecordCost(ctx, "gpt-4o", 0)
	m.RecordCall(ctx, "gpt-4o", time.Second, "")
	m.RecordCall(ctx, "gpt-4o", time.Second, "timeout")

	// tokens + cost + call + failed call (latency and failure)
	if want := 5; enriched != want {
		t.Errorf("enricher calls: got = %d, wanted = %d", enriched, want)
	}
}

func TestWithStatic(t *testing.T) {
	enrich := WithStatic(attribute.String("profile", "ci"))
	got := enrich(context.Background(), []attribute.KeyValue{attribute.String("model", "m")})
	if len(got) != 2 || got[1].Value.AsString() != "ci" {
		t.Errorf("WithStatic() = %v", got)
	}
}

func TestNewJudgeGlobal(t *testing.T) {
	if NewJudge(DefaultMeterName) == nil {
		t.Fatal("NewJudge() = nil")
	}
}
