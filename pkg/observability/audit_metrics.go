package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricTargetsTotal   = "packfang.audit.targets.total"
	metricFilesTotal     = "packfang.audit.files.total"
	metricTargetDuration = "packfang.audit.target.duration.seconds"
	metricFindingsTotal  = "packfang.audit.findings.total"

	attrClassification = "classification"
)

// Finding classification attribute values.
const (
	ClassMissing          = "missing"
	ClassUnused           = "unused"
	ClassRedundant        = "redundant"
	ClassProductSatisfied = "product_satisfied"
	ClassCorrect          = "correct"
)

// AuditMetrics holds OTel instruments for audit-specific metrics.
type AuditMetrics struct {
	targetsTotal   metric.Int64Counter
	filesTotal     metric.Int64Counter
	targetDuration metric.Float64Histogram
	findingsTotal  metric.Int64Counter
}

// NewAuditMetrics creates audit metric instruments from the given meter.
func NewAuditMetrics(mt metric.Meter) (*AuditMetrics, error) {
	targets, err := mt.Int64Counter(metricTargetsTotal,
		metric.WithDescription("Total number of audited targets"),
		metric.WithUnit("{target}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTargetsTotal, err)
	}

	files, err := mt.Int64Counter(metricFilesTotal,
		metric.WithDescription("Total number of scanned source files"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesTotal, err)
	}

	duration, err := mt.Float64Histogram(metricTargetDuration,
		metric.WithDescription("Per-target audit duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTargetDuration, err)
	}

	findings, err := mt.Int64Counter(metricFindingsTotal,
		metric.WithDescription("Total number of findings by classification"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFindingsTotal, err)
	}

	return &AuditMetrics{
		targetsTotal:   targets,
		filesTotal:     files,
		targetDuration: duration,
		findingsTotal:  findings,
	}, nil
}

// RecordTarget records one audited target: its scan size, duration, and outcome.
func (am *AuditMetrics) RecordTarget(ctx context.Context, status string, files int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrStatus, status))

	am.targetsTotal.Add(ctx, 1, attrs)
	am.filesTotal.Add(ctx, int64(files), attrs)
	am.targetDuration.Record(ctx, duration.Seconds(), attrs)
}

// AddFindings records a finding count under one classification.
func (am *AuditMetrics) AddFindings(ctx context.Context, classification string, count int) {
	if count == 0 {
		return
	}

	am.findingsTotal.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(attrClassification, classification),
	))
}
