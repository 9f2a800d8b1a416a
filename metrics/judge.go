/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics records OpenTelemetry measurements for judge calls.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// DefaultMeterName is the meter used when callers do not pick one.
const DefaultMeterName = "chainguard.dev/judgeval"

// Judge provides OpenTelemetry instruments for judge calls: token usage,
// spend, latency and failures. Instruments that fail to initialize are
// replaced with no-ops.
type Judge struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	cost             metric.Float64Counter
	latency          metric.Float64Histogram
	failures         metric.Int64Counter
	attrEnricher     AttributeEnricher
}

// NewJudge creates the instruments on the global meter provider.
func NewJudge(meterName string) *Judge {
	return NewJudgeWithMeter(otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0")))
}

// NewJudgeWithMeter creates the instruments on meter.
func NewJudgeWithMeter(meter metric.Meter) *Judge {
	promptTokens, err := meter.Int64Counter("judge.token.prompt",
		metric.WithDescription("The number of prompt tokens sent to judge models"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create prompt tokens counter, metrics will be disabled", "error", err)
		promptTokens = noop.Int64Counter{}
	}

	completionTokens, err := meter.Int64Counter("judge.token.completion",
		metric.WithDescription("The number of completion tokens produced by judge models"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create completion tokens counter, metrics will be disabled", "error", err)
		completionTokens = noop.Int64Counter{}
	}

	cost, err := meter.Float64Counter("judge.cost",
		metric.WithDescription("Estimated spend on judge calls"),
		metric.WithUnit("USD"))
	if err != nil {
		slog.Warn("Failed to create cost counter, metrics will be disabled", "error", err)
		cost = noop.Float64Counter{}
	}

	latency, err := meter.Float64Histogram("judge.call.duration",
		metric.WithDescription("Wall-clock duration of judge calls including retries"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("Failed to create latency histogram, metrics will be disabled", "error", err)
		latency = noop.Float64Histogram{}
	}

	failures, err := meter.Int64Counter("judge.call.failures",
		metric.WithDescription("The number of judge calls that ended in an error"),
		metric.WithUnit("{calls}"))
	if err != nil {
		slog.Warn("Failed to create failure counter, metrics will be disabled", "error", err)
		failures = noop.Int64Counter{}
	}

	return &Judge{
		promptTokens:     promptTokens,
		completionTokens: completionTokens,
		cost:             cost,
		latency:          latency,
		failures:         failures,
	}
}

// SetAttributeEnricher sets the enricher consulted before every measurement.
func (m *Judge) SetAttributeEnricher(enricher AttributeEnricher) {
	m.attrEnricher = enricher
}

func (m *Judge) attributes(ctx context.Context, model string, attrs []attribute.KeyValue) metric.MeasurementOption {
	baseAttrs := []attribute.KeyValue{
		attribute.String("model", model),
	}
	if m.attrEnricher != nil {
		baseAttrs = m.attrEnricher(ctx, baseAttrs)
	}
	baseAttrs = append(baseAttrs, attrs...)
	return metric.WithAttributes(baseAttrs...)
}

// RecordTokens records prompt and completion token usage.
func (m *Judge) RecordTokens(ctx context.Context, model string, promptTokens, completionTokens int64, attrs ...attribute.KeyValue) {
	opt := m.attributes(ctx, model, attrs)
	m.promptTokens.Add(ctx, promptTokens, opt)
	m.completionTokens.Add(ctx, completionTokens, opt)
}

// RecordCost records spend. Non-positive amounts are ignored.
func (m *Judge) RecordCost(ctx context.Context, model string, cost float64, attrs ...attribute.KeyValue) {
	if cost <= 0 {
		return
	}
	m.cost.Add(ctx, cost, m.attributes(ctx, model, attrs))
}

// RecordCall records the latency of a judge call and, when kind is not
// empty, a failure of that kind.
func (m *Judge) RecordCall(ctx context.Context, model string, d time.Duration, kind string, attrs ...attribute.KeyValue) {
	m.latency.Record(ctx, d.Seconds(), m.attributes(ctx, model, attrs))
	if kind != "" {
		m.failures.Add(ctx, 1, m.attributes(ctx, model, append(attrs, attribute.String("kind", kind))))
	}
}
