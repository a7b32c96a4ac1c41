// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package selection

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("affected.selection")
	meter  = otel.Meter("affected.selection")
)

var (
	selectLatency   metric.Float64Histogram
	candidatesTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		selectLatency, err = meter.Float64Histogram(
			"selection_duration_seconds",
			metric.WithDescription("Duration of test selection across all candidates"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		candidatesTotal, err = meter.Int64Counter(
			"selection_candidates_total",
			metric.WithDescription("Total number of candidates evaluated, by reason"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startSelectSpan(ctx context.Context, candidates, workers int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Select",
		trace.WithAttributes(
			attribute.Int("selection.candidates", candidates),
			attribute.Int("selection.workers", workers),
		),
	)
}

func setSelectSpanResult(span trace.Span, selected, failures int) {
	span.SetAttributes(
		attribute.Int("selection.selected", selected),
		attribute.Int("selection.failures", failures),
	)
}

func recordSelectMetrics(ctx context.Context, duration time.Duration, result *Result) {
	if err := initMetrics(); err != nil {
		return
	}
	selectLatency.Record(ctx, duration.Seconds())
	counts := make(map[string]int64)
	for _, d := range result.Decisions {
		counts[d.Reason]++
	}
	for reason, n := range counts {
		candidatesTotal.Add(ctx, n, metric.WithAttributes(attribute.String("reason", reason)))
	}
}
