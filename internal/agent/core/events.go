package core

import (
	"context"
	"time"
)

// Lifecycle event names, as published to external sinks.
const (
	EventIterationStart = "iteration_start"
	EventIterationEnd   = "iteration_end"
	EventStepStart      = "step_start"
	EventStepEnd        = "step_end"
	EventLogMessage     = "log_message"
)

// IterationEvent carries the state entering (start) or leaving (end) an iteration.
type IterationEvent struct {
	Round      int         `json:"round"`
	Objectives []Objective `json:"objectives"`
	Findings   Findings    `json:"findings"`
}

// StepEvent describes one stage boundary. Inputs and Outputs hold the typed
// stage payloads (PlanInputs, PlanOutputs, ...); Outputs is nil on start.
type StepEvent struct {
	Round   int  `json:"round"`
	Step    Step `json:"step"`
	Inputs  any  `json:"inputs"`
	Outputs any  `json:"outputs,omitempty"`
}

// LogEvent is a free-form progress message.
type LogEvent struct {
	Time    time.Time `json:"timestamp"`
	Message string    `json:"message"`
}

// Observer receives run lifecycle notifications. Embed NopObserver to
// implement only the handlers you need.
type Observer interface {
	IterationStart(ctx context.Context, ev IterationEvent)
	IterationEnd(ctx context.Context, ev IterationEvent)
	StepStart(ctx context.Context, ev StepEvent)
	StepEnd(ctx context.Context, ev StepEvent)
	LogMessage(ctx context.Context, ev LogEvent)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) IterationStart(context.Context, IterationEvent) {}
func (NopObserver) IterationEnd(context.Context, IterationEvent)   {}
func (NopObserver) StepStart(context.Context, StepEvent)           {}
func (NopObserver) StepEnd(context.Context, StepEvent)             {}
func (NopObserver) LogMessage(context.Context, LogEvent)           {}

// Bus fans events out to observers synchronously, in registration order.
// A nil *Bus drops everything.
type Bus struct {
	observers []Observer
	now       func() time.Time
}

// NewBus returns a bus with the given observers registered in order.
func NewBus(observers ...Observer) *Bus {
	b := &Bus{now: time.Now}
	for _, o := range observers {
		b.Register(o)
	}
	return b
}

// Register appends an observer. Nil observers are ignored.
func (b *Bus) Register(o Observer) {
	if o == nil {
		return
	}
	b.observers = append(b.observers, o)
}

func (b *Bus) IterationStart(ctx context.Context, ev IterationEvent) {
	if b == nil {
		return
	}
	for _, o := range b.observers {
		o.IterationStart(ctx, ev)
	}
}

func (b *Bus) IterationEnd(ctx context.Context, ev IterationEvent) {
	if b == nil {
		return
	}
	for _, o := range b.observers {
		o.IterationEnd(ctx, ev)
	}
}

func (b *Bus) StepStart(ctx context.Context, ev StepEvent) {
	if b == nil {
		return
	}
	for _, o := range b.observers {
		o.StepStart(ctx, ev)
	}
}

func (b *Bus) StepEnd(ctx context.Context, ev StepEvent) {
	if b == nil {
		return
	}
	for _, o := range b.observers {
		o.StepEnd(ctx, ev)
	}
}

// Log emits a log_message event stamped with the current time.
func (b *Bus) Log(ctx context.Context, message string) {
	if b == nil {
		return
	}
	ev := LogEvent{Time: b.now(), Message: message}
	for _, o := range b.observers {
		o.LogMessage(ctx, ev)
	}
}
