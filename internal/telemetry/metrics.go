package telemetry

import (
	"context"
	"sync"

	"github.com/wolfeidau/awsui/internal/awsclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/awsui"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Backend metrics
	BackendCallsTotal  metric.Int64Counter
	BackendErrorsTotal metric.Int64Counter

	// Preview metrics
	PreviewRendersTotal  metric.Int64Counter
	PreviewFetchDuration metric.Float64Histogram
	PreviewFetchBytes    metric.Int64Counter

	// Mutation metrics
	ObjectsUploadedTotal metric.Int64Counter
	UploadedBytesTotal   metric.Int64Counter
	ObjectsDeletedTotal  metric.Int64Counter

	SearchQueriesTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BackendCallsTotal, _ = meter.Int64Counter(
		"awsui.backend.calls.total",
		metric.WithDescription("Total number of calls made to the AWS compatible backend"),
		metric.WithUnit("{call}"),
	)

	m.BackendErrorsTotal, _ = meter.Int64Counter(
		"awsui.backend.errors.total",
		metric.WithDescription("Total number of failed backend calls"),
		metric.WithUnit("{error}"),
	)

	m.PreviewRendersTotal, _ = meter.Int64Counter(
		"awsui.preview.renders.total",
		metric.WithDescription("Total number of rendered content previews"),
		metric.WithUnit("{preview}"),
	)

	m.PreviewFetchDuration, _ = meter.Float64Histogram(
		"awsui.preview.fetch.duration",
		metric.WithDescription("Duration of preview body fetches"),
		metric.WithUnit("ms"),
	)

	m.PreviewFetchBytes, _ = meter.Int64Counter(
		"awsui.preview.fetch.bytes",
		metric.WithDescription("Bytes read while fetching preview bodies"),
		metric.WithUnit("By"),
	)

	m.ObjectsUploadedTotal, _ = meter.Int64Counter(
		"awsui.objects.uploaded.total",
		metric.WithDescription("Total number of uploaded objects"),
		metric.WithUnit("{object}"),
	)

	m.UploadedBytesTotal, _ = meter.Int64Counter(
		"awsui.objects.uploaded.bytes",
		metric.WithDescription("Total number of uploaded bytes"),
		metric.WithUnit("By"),
	)

	m.ObjectsDeletedTotal, _ = meter.Int64Counter(
		"awsui.objects.deleted.total",
		metric.WithDescription("Total number of deleted objects"),
		metric.WithUnit("{object}"),
	)

	m.SearchQueriesTotal, _ = meter.Int64Counter(
		"awsui.search.queries.total",
		metric.WithDescription("Total number of fuzzy search queries"),
		metric.WithUnit("{query}"),
	)

	return m
}

// RecordBackendCall counts a backend call and, when err is set, the error
// class it was mapped to.
func RecordBackendCall(ctx context.Context, service, operation string, err error) {
	m := GetMetrics()
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
	)
	m.BackendCallsTotal.Add(ctx, 1, attrs)
	if err == nil {
		return
	}
	m.BackendErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.String("code", errorClass(err)),
	))
}

func errorClass(err error) string {
	if code := awsclient.Code(err); code != "" {
		return code
	}
	return "unknown"
}
