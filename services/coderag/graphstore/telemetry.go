// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphstore

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph store operations.
var (
	tracer = otel.Tracer("coderag.graphstore")
	meter  = otel.Meter("coderag.graphstore")
)

var (
	opLatency      metric.Float64Histogram
	opTotal        metric.Int64Counter
	ingestedTotal  metric.Int64Counter
	ingestFailures metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		opLatency, err = meter.Float64Histogram(
			"graphstore_operation_duration_seconds",
			metric.WithDescription("Duration of graph store operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opTotal, err = meter.Int64Counter(
			"graphstore_operations_total",
			metric.WithDescription("Total number of graph store operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ingestedTotal, err = meter.Int64Counter(
			"graphstore_ingested_total",
			metric.WithDescription("Entities written by bulk ingestion"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ingestFailures, err = meter.Int64Counter(
			"graphstore_ingest_failures_total",
			metric.WithDescription("Entities rejected during bulk ingestion"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordOpMetrics records latency and outcome for a single operation.
func recordOpMetrics(ctx context.Context, op string, duration time.Duration, err error) {
	if initMetrics() != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", err == nil),
	)
	opLatency.Record(ctx, duration.Seconds(), attrs)
	opTotal.Add(ctx, 1, attrs)
}

// recordIngestMetrics records the outcome counts of an ingestion run.
func recordIngestMetrics(ctx context.Context, projectID string, result *IngestResult) {
	if initMetrics() != nil || result == nil {
		return
	}

	project := attribute.String("project_id", projectID)
	ingestedTotal.Add(ctx, int64(result.EntitiesCreated),
		metric.WithAttributes(project, attribute.String("kind", "node")))
	ingestedTotal.Add(ctx, int64(result.RelationshipsCreated),
		metric.WithAttributes(project, attribute.String("kind", "edge")))
	if n := len(result.Failures); n > 0 {
		ingestFailures.Add(ctx, int64(n), metric.WithAttributes(project))
	}
}

// startOpSpan creates a span for a store operation.
func startOpSpan(ctx context.Context, op, projectID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "GraphStore."+op,
		trace.WithAttributes(
			attribute.String("graphstore.op", op),
			attribute.String("graphstore.project_id", projectID),
		),
	)
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
