package gateway

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fenwicklabs/circd/internal/gateway"

// Metrics holds gateway call instrumentation.
type Metrics struct {
	meter          metric.Meter
	logger         *zap.Logger
	callsTotal     metric.Int64Counter
	failuresTotal  metric.Int64Counter
	fallbacksTotal metric.Int64Counter
}

func newMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}

	var err error
	m.callsTotal, err = m.meter.Int64Counter(
		"circd.gateway.calls_total",
		metric.WithDescription("Backend calls issued, labeled by service and method."),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("failed to create calls counter", zap.Error(err))
	}

	m.failuresTotal, err = m.meter.Int64Counter(
		"circd.gateway.failures_total",
		metric.WithDescription("Backend call failures, labeled by service, method, and kind (domain, transport, method_not_found)."),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("failed to create failures counter", zap.Error(err))
	}

	m.fallbacksTotal, err = m.meter.Int64Counter(
		"circd.gateway.fallbacks_total",
		metric.WithDescription("Operations that retried through their generic fallback method."),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		logger.Warn("failed to create fallbacks counter", zap.Error(err))
	}
	return m
}

func (m *Metrics) recordCall(ctx context.Context, service, method string) {
	if m.callsTotal != nil {
		m.callsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("method", method),
		))
	}
}

func (m *Metrics) recordFailure(ctx context.Context, service, method, kind string) {
	if m.failuresTotal != nil {
		m.failuresTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("method", method),
			attribute.String("kind", kind),
		))
	}
}

func (m *Metrics) recordFallback(ctx context.Context, operation string) {
	if m.fallbacksTotal != nil {
		m.fallbacksTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
		))
	}
}
