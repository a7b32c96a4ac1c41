// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package affected

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("affected.runner")
	meter  = otel.Meter("affected.runner")
)

// Textfile gauges describing the last run, for CI dashboards that scrape
// the node-exporter textfile directory.
var (
	lastRunSelected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "affected_tests_last_run_selected",
		Help: "Number of tests selected by the last run",
	})
	lastRunDecision = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "affected_tests_last_run_decision",
		Help: "1 for the decision taken by the last run, 0 otherwise",
	}, []string{"decision"})
	lastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "affected_tests_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})
)

var knownDecisions = []string{
	DecisionNoChanges, DecisionRunAll, DecisionSelected, DecisionNoneSelected, "error",
}

var (
	runLatency metric.Float64Histogram
	runsTotal  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"affected_run_duration_seconds",
			metric.WithDescription("Duration of a full selection run"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runsTotal, err = meter.Int64Counter(
			"affected_runs_total",
			metric.WithDescription("Total runs by decision"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startRunSpan(ctx context.Context, runID, root string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.Run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.root", root),
		),
	)
}

func setRunSpanResult(span trace.Span, r *Report) {
	span.SetAttributes(
		attribute.String("run.decision", r.Decision),
		attribute.String("run.sentinel", r.Sentinel),
		attribute.Int("run.changed", len(r.Changed)),
		attribute.Int("run.candidates", r.Candidates),
		attribute.Int("run.selected", len(r.Selected)),
	)
}

func recordRun(ctx context.Context, decision string, duration time.Duration, selected int) {
	for _, d := range knownDecisions {
		v := 0.0
		if d == decision {
			v = 1
		}
		lastRunDecision.WithLabelValues(d).Set(v)
	}
	lastRunSelected.Set(float64(selected))
	lastRunTimestamp.SetToCurrentTime()

	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("decision", decision))
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runsTotal.Add(ctx, 1, attrs)
}
