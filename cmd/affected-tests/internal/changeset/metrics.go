// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package changeset

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
	tracer = otel.Tracer("affected.changeset")
	meter  = otel.Meter("affected.changeset")
)

var (
	diffLatency metric.Float64Histogram
	diffTotal   metric.Int64Counter
	diffFiles   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		diffLatency, err = meter.Float64Histogram(
			"changeset_git_diff_duration_seconds",
			metric.WithDescription("Duration of the changed-file git query"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		diffTotal, err = meter.Int64Counter(
			"changeset_git_diff_total",
			metric.WithDescription("Total number of changed-file git queries"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		diffFiles, err = meter.Int64Histogram(
			"changeset_files",
			metric.WithDescription("Number of changed files per query"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startDiffSpan(ctx context.Context, base, head string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "GitProvider.GetChangedFiles",
		trace.WithAttributes(
			attribute.String("git.base", base),
			attribute.String("git.head", head),
		),
	)
}

func setDiffSpanResult(span trace.Span, files int) {
	span.SetAttributes(attribute.Int("changeset.files", files))
}

func recordDiffMetrics(ctx context.Context, duration time.Duration, files int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	diffLatency.Record(ctx, duration.Seconds(), attrs)
	diffTotal.Add(ctx, 1, attrs)
	if success {
		diffFiles.Record(ctx, int64(files))
	}
}
