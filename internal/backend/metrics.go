package backend

import (
	"context"
	"errors"
	"strconv"
	"time"

	"ai-companion-demo/companion/pkg/logger"
	"ai-companion-demo/companion/pkg/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type clientMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newClientMetrics(log *logger.Logger) *clientMetrics {
	meter := otel.Meter(scopeName)
	m := &clientMetrics{}

	var err error
	m.requests, err = meter.Int64Counter("companion_backend_requests",
		metric.WithDescription("Calls made to the companion backend"))
	if err != nil {
		log.LogError(err, "failed to create backend request counter")
	}
	m.duration, err = meter.Float64Histogram("companion_backend_request_duration",
		metric.WithDescription("Latency of companion backend calls"),
		metric.WithUnit("s"))
	if err != nil {
		log.LogError(err, "failed to create backend latency histogram")
	}
	return m
}

func (m *clientMetrics) record(ctx context.Context, op string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome(err)),
	)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	if status := StatusOf(err); status != 0 {
		return strconv.Itoa(status)
	}
	return "transport_error"
}
