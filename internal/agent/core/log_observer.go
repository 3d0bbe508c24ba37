package core

import (
	"context"

	"go.uber.org/zap"
)

// LogObserver mirrors bus events into a zap logger.
type LogObserver struct {
	NopObserver
	logger *zap.Logger
}

// NewLogObserver returns an observer writing to logger.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger.Named("run")}
}

func (l *LogObserver) IterationStart(_ context.Context, ev IterationEvent) {
	l.logger.Info("iteration started", zap.Int("round", ev.Round), zap.Int("objectives", len(ev.Objectives)))
}

func (l *LogObserver) IterationEnd(_ context.Context, ev IterationEvent) {
	fields := []zap.Field{zap.Int("round", ev.Round), zap.Int("generated_objectives", len(ev.Findings.GeneratedObjectives))}
	for _, o := range ev.Objectives {
		fields = append(fields, zap.Float64(o.Topic, o.Expertise))
	}
	l.logger.Info("iteration finished", fields...)
}

func (l *LogObserver) StepStart(_ context.Context, ev StepEvent) {
	l.logger.Debug("step started", zap.Int("round", ev.Round), zap.String("step", string(ev.Step)))
}

func (l *LogObserver) StepEnd(_ context.Context, ev StepEvent) {
	l.logger.Debug("step finished", zap.Int("round", ev.Round), zap.String("step", string(ev.Step)))
}

func (l *LogObserver) LogMessage(_ context.Context, ev LogEvent) {
	l.logger.Info(ev.Message)
}
