package core

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// TelemetryObserver counts lifecycle events on the global meter provider.
type TelemetryObserver struct {
	NopObserver
	iterations otelmetric.Int64Counter
	steps      otelmetric.Int64Counter
	logs       otelmetric.Int64Counter
	expertise  otelmetric.Float64Histogram
}

// NewTelemetryObserver registers the run instruments on meter, or on the
// global provider when meter is nil. Instruments that fail to register are
// logged and skipped.
func NewTelemetryObserver(meter otelmetric.Meter, logger *zap.Logger) *TelemetryObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = otel.Meter("researcher/internal/agent/core")
	}
	t := &TelemetryObserver{}
	var err error
	if t.iterations, err = meter.Int64Counter("research_iterations_total",
		otelmetric.WithDescription("Completed research iterations")); err != nil {
		logger.Warn("telemetry observer init", zap.String("instrument", "research_iterations_total"), zap.Error(err))
	}
	if t.steps, err = meter.Int64Counter("research_steps_total",
		otelmetric.WithDescription("Completed pipeline steps by step name")); err != nil {
		logger.Warn("telemetry observer init", zap.String("instrument", "research_steps_total"), zap.Error(err))
	}
	if t.logs, err = meter.Int64Counter("research_log_messages_total",
		otelmetric.WithDescription("Progress messages emitted on the bus")); err != nil {
		logger.Warn("telemetry observer init", zap.String("instrument", "research_log_messages_total"), zap.Error(err))
	}
	if t.expertise, err = meter.Float64Histogram("research_objective_expertise",
		otelmetric.WithDescription("Primary objective expertise at the end of each iteration")); err != nil {
		logger.Warn("telemetry observer init", zap.String("instrument", "research_objective_expertise"), zap.Error(err))
	}
	return t
}

func (t *TelemetryObserver) IterationEnd(ctx context.Context, ev IterationEvent) {
	if t.iterations != nil {
		t.iterations.Add(ctx, 1)
	}
	if t.expertise != nil {
		for _, o := range ev.Objectives {
			t.expertise.Record(ctx, o.Expertise)
		}
	}
}

func (t *TelemetryObserver) StepEnd(ctx context.Context, ev StepEvent) {
	if t.steps != nil {
		t.steps.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("step", string(ev.Step))))
	}
}

func (t *TelemetryObserver) LogMessage(ctx context.Context, _ LogEvent) {
	if t.logs != nil {
		t.logs.Add(ctx, 1)
	}
}
