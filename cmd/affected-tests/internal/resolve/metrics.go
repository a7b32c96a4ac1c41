// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("affected.resolve")

var (
	resolveTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		resolveTotal, metricsErr = meter.Int64Counter(
			"resolve_specifiers_total",
			metric.WithDescription("Total number of specifiers resolved, by status"),
		)
	})
	return metricsErr
}

func recordResolution(status Status) {
	if err := initMetrics(); err != nil {
		return
	}
	resolveTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status.String())))
}
