package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/packfang/pkg/observability"
)

func setupAuditMeter(t *testing.T) (*observability.AuditMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	am, err := observability.NewAuditMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return am, reader
}

func TestAuditMetrics_RecordTarget(t *testing.T) {
	t.Parallel()

	am, reader := setupAuditMeter(t)
	ctx := context.Background()

	am.RecordTarget(ctx, "ok", 12, time.Millisecond*50)

	rm := collectMetrics(t, reader)

	targets := findMetric(rm, "packfang.audit.targets.total")
	require.NotNil(t, targets, "targets.total metric not found")

	files := findMetric(rm, "packfang.audit.files.total")
	require.NotNil(t, files, "files.total metric not found")

	sum, ok := files.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(12), sum.DataPoints[0].Value)

	duration := findMetric(rm, "packfang.audit.target.duration.seconds")
	assert.NotNil(t, duration, "target.duration metric not found")
}

func TestAuditMetrics_AddFindings(t *testing.T) {
	t.Parallel()

	am, reader := setupAuditMeter(t)
	ctx := context.Background()

	am.AddFindings(ctx, observability.ClassMissing, 2)
	am.AddFindings(ctx, observability.ClassUnused, 1)
	am.AddFindings(ctx, observability.ClassCorrect, 0)

	rm := collectMetrics(t, reader)

	findings := findMetric(rm, "packfang.audit.findings.total")
	require.NotNil(t, findings, "findings.total metric not found")

	sum, ok := findings.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	// Zero-count classifications are not recorded.
	assert.Len(t, sum.DataPoints, 2)
}
