package streams

import (
	"context"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"go.uber.org/zap"
)

// DefaultMaxLen bounds the event stream.
const DefaultMaxLen = 10000

type emitter interface {
	Emit(ctx context.Context, runID, eventType string, payload any) (string, error)
}

// Observer mirrors run lifecycle events onto a Redis stream. Publish
// failures are logged and counted; they never reach the run.
type Observer struct {
	publisher emitter
	runID     string
	logger    *zap.Logger
}

func NewObserver(publisher *Publisher, runID string, logger *zap.Logger) *Observer {
	return newObserver(publisher, runID, logger)
}

func newObserver(p emitter, runID string, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{publisher: p, runID: runID, logger: logger.Named("streams")}
}

func (o *Observer) IterationStart(ctx context.Context, ev core.IterationEvent) {
	o.publish(ctx, core.EventIterationStart, ev)
}

func (o *Observer) IterationEnd(ctx context.Context, ev core.IterationEvent) {
	o.publish(ctx, core.EventIterationEnd, ev)
}

func (o *Observer) StepStart(ctx context.Context, ev core.StepEvent) {
	o.publish(ctx, core.EventStepStart, ev)
}

func (o *Observer) StepEnd(ctx context.Context, ev core.StepEvent) {
	o.publish(ctx, core.EventStepEnd, ev)
}

func (o *Observer) LogMessage(ctx context.Context, ev core.LogEvent) {
	o.publish(ctx, core.EventLogMessage, ev)
}

func (o *Observer) publish(ctx context.Context, eventType string, payload any) {
	_, err := o.publisher.Emit(ctx, o.runID, eventType, payload)
	recordPublish(ctx, eventType, err)
	if err != nil {
		o.logger.Warn("publish run event", zap.String("event_type", eventType), zap.Error(err))
	}
}
