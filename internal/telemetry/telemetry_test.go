package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSampler(t *testing.T) {
	require.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(1).Description())
	require.Equal(t, sdktrace.NeverSample().Description(), Sampler(0).Description())
	require.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestRecordBackendCall(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	ctx := context.Background()
	RecordBackendCall(ctx, "s3", "ListBuckets", nil)
	RecordBackendCall(ctx, "s3", "GetObject", &smithy.GenericAPIError{Code: "NoSuchKey"})
	RecordBackendCall(ctx, "sqs", "SendMessage", errors.New("dial tcp: refused"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	calls := sumByName(t, rm, "awsui.backend.calls.total")
	require.Equal(t, int64(3), total(calls))

	errs := sumByName(t, rm, "awsui.backend.errors.total")
	require.Equal(t, int64(2), total(errs))

	codes := map[string]int64{}
	for _, dp := range errs.DataPoints {
		code, _ := dp.Attributes.Value(attribute.Key("code"))
		codes[code.AsString()] += dp.Value
	}
	require.Equal(t, map[string]int64{"NoSuchKey": 1, "unknown": 1}, codes)
}

func sumByName(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				return sum
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return metricdata.Sum[int64]{}
}

func total(sum metricdata.Sum[int64]) int64 {
	var n int64
	for _, dp := range sum.DataPoints {
		n += dp.Value
	}
	return n
}
