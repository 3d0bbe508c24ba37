package core

import (
	"sync"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	coreMetricsOnce    sync.Once
	completionAttempts otelmetric.Int64Counter
	completionFailures otelmetric.Int64Counter
	stageDuration      otelmetric.Float64Histogram
	toolCalls          otelmetric.Int64Counter
)

func initCoreMetrics() {
	coreMetricsOnce.Do(func() {
		meter := otel.Meter("researcher/internal/agent/core")
		var err error
		completionAttempts, err = meter.Int64Counter("completion_attempts_total",
			otelmetric.WithDescription("Completion calls issued, retries included"))
		if err != nil {
			zap.L().Warn("core metrics init", zap.String("instrument", "completion_attempts_total"), zap.Error(err))
		}
		completionFailures, err = meter.Int64Counter("completion_failures_total",
			otelmetric.WithDescription("Failed completion calls"))
		if err != nil {
			zap.L().Warn("core metrics init", zap.String("instrument", "completion_failures_total"), zap.Error(err))
		}
		stageDuration, err = meter.Float64Histogram("stage_duration_seconds",
			otelmetric.WithDescription("Wall time of a pipeline stage"),
			otelmetric.WithUnit("s"))
		if err != nil {
			zap.L().Warn("core metrics init", zap.String("instrument", "stage_duration_seconds"), zap.Error(err))
		}
		toolCalls, err = meter.Int64Counter("tool_calls_total",
			otelmetric.WithDescription("Tool invocations by tool name and outcome"))
		if err != nil {
			zap.L().Warn("core metrics init", zap.String("instrument", "tool_calls_total"), zap.Error(err))
		}
	})
}
