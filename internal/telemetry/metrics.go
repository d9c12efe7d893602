package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments shared by the scanner, reclaimer and daemon.
// A nil *Metrics records nothing.
type Metrics struct {
	scanResources metric.Int64Counter
	scanErrors    metric.Int64Counter
	scanDuration  metric.Float64Histogram
	candidates    metric.Int64Gauge
	removals      metric.Int64Counter
	passes        metric.Int64Counter
	passDuration  metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.scanResources, err = meter.Int64Counter(
		"ephemera.scan.resources",
		metric.WithDescription("Runtime objects observed by scans"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	m.scanErrors, err = meter.Int64Counter(
		"ephemera.scan.errors",
		metric.WithDescription("Runtime queries that failed and were treated as empty"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.scanDuration, err = meter.Float64Histogram(
		"ephemera.scan.duration",
		metric.WithDescription("Duration of full scans"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.candidates, err = meter.Int64Gauge(
		"ephemera.retention.candidates",
		metric.WithDescription("Cleanup candidates in the latest report"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	m.removals, err = meter.Int64Counter(
		"ephemera.reclaim.removals",
		metric.WithDescription("Removal attempts by outcome"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	m.passes, err = meter.Int64Counter(
		"ephemera.daemon.passes",
		metric.WithDescription("Watch loop passes by status"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, err
	}

	m.passDuration, err = meter.Float64Histogram(
		"ephemera.daemon.pass.duration",
		metric.WithDescription("Duration of watch loop passes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordScan records the objects found for one kind.
func (m *Metrics) RecordScan(ctx context.Context, kind string, count int) {
	if m == nil {
		return
	}
	m.scanResources.Add(ctx, int64(count), metric.WithAttributes(attribute.String("resource.kind", kind)))
}

// RecordScanError records a failed runtime query.
func (m *Metrics) RecordScanError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.scanErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("resource.kind", kind)))
}

// RecordScanDuration records how long a full scan took.
func (m *Metrics) RecordScanDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Record(ctx, d.Seconds())
}

// RecordCandidates records the candidate count for one kind.
func (m *Metrics) RecordCandidates(ctx context.Context, kind string, count int) {
	if m == nil {
		return
	}
	m.candidates.Record(ctx, int64(count), metric.WithAttributes(attribute.String("resource.kind", kind)))
}

// RecordRemoval records one removal attempt.
func (m *Metrics) RecordRemoval(ctx context.Context, kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "removed"
	if !ok {
		outcome = "failed"
	}
	m.removals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource.kind", kind),
		attribute.String("outcome", outcome),
	))
}

// RecordPass records one watch loop pass.
func (m *Metrics) RecordPass(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.passes.Add(ctx, 1, attrs)
	m.passDuration.Record(ctx, d.Seconds(), attrs)
}
