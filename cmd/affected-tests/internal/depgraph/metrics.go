// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

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
	tracer = otel.Tracer("affected.depgraph")
	meter  = otel.Meter("affected.depgraph")
)

var (
	closureLatency metric.Float64Histogram
	closureFiles   metric.Int64Histogram
	unresolvedSeen metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		closureLatency, err = meter.Float64Histogram(
			"depgraph_closure_duration_seconds",
			metric.WithDescription("Duration of building one dependency closure"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		closureFiles, err = meter.Int64Histogram(
			"depgraph_closure_files",
			metric.WithDescription("Number of files in a dependency closure"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		unresolvedSeen, err = meter.Int64Counter(
			"depgraph_unresolved_total",
			metric.WithDescription("Total number of unresolved specifiers recorded"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startClosureSpan(ctx context.Context, entry string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Indexer.BuildClosure",
		trace.WithAttributes(attribute.String("closure.entry", entry)),
	)
}

func setClosureSpanResult(span trace.Span, files, unresolved int) {
	span.SetAttributes(
		attribute.Int("closure.files", files),
		attribute.Int("closure.unresolved", unresolved),
	)
}

func recordClosureMetrics(ctx context.Context, duration time.Duration, files, unresolved int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	closureLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
	if success {
		closureFiles.Record(ctx, int64(files))
		unresolvedSeen.Add(ctx, int64(unresolved))
	}
}
