package client

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/eqviz/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/leapstack-labs/eqviz/internal/client"

// Metric names.
const (
	MetricRequests = "eqviz.client.requests"
	MetricDuration = "eqviz.client.duration"
)

type instruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(instrumentationName)

	requests, err := meter.Int64Counter(MetricRequests,
		metric.WithDescription("Requests issued to the analytics service"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricRequests, err)
	}

	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Duration of requests to the analytics service"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", MetricDuration, err)
	}

	return &instruments{requests: requests, duration: duration}, nil
}

// outcome is "ok" or the error kind.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := core.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

func (i *instruments) record(ctx context.Context, op string, err error, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome(err)),
	)
	// Measurements must not be dropped because the request context was cancelled.
	ctx = context.WithoutCancel(ctx)
	i.requests.Add(ctx, 1, attrs)
	i.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}
