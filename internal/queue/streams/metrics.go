package streams

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	streamMetricsOnce sync.Once
	eventsPublished   otelmetric.Int64Counter
	publishFailures   otelmetric.Int64Counter
)

func initStreamMetrics() {
	streamMetricsOnce.Do(func() {
		meter := otel.Meter("researcher/internal/queue/streams")
		var err error
		eventsPublished, err = meter.Int64Counter("stream_events_published_total",
			otelmetric.WithDescription("Run events appended to Redis streams"))
		if err != nil {
			zap.L().Warn("queue streams metrics init", zap.String("instrument", "stream_events_published_total"), zap.Error(err))
		}
		publishFailures, err = meter.Int64Counter("stream_publish_failures_total",
			otelmetric.WithDescription("Run events that could not be published"))
		if err != nil {
			zap.L().Warn("queue streams metrics init", zap.String("instrument", "stream_publish_failures_total"), zap.Error(err))
		}
	})
}

func recordPublish(ctx context.Context, eventType string, err error) {
	initStreamMetrics()
	attrs := otelmetric.WithAttributes(attribute.String("event_type", eventType))
	if err != nil {
		if publishFailures != nil {
			publishFailures.Add(ctx, 1, attrs)
		}
		return
	}
	if eventsPublished != nil {
		eventsPublished.Add(ctx, 1, attrs)
	}
}
