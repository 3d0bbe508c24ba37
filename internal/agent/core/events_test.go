package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// recorder captures every event as "<name>[:<step>]".
type recorder struct {
	mu     sync.Mutex
	id     string
	sink   *[]string
	events []string
	steps  []StepEvent
	logs   []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
	if r.sink != nil {
		*r.sink = append(*r.sink, r.id+":"+s)
	}
}

func (r *recorder) IterationStart(_ context.Context, ev IterationEvent) {
	r.add(fmt.Sprintf("%s:%d", EventIterationStart, ev.Round))
}

func (r *recorder) IterationEnd(_ context.Context, ev IterationEvent) {
	r.add(fmt.Sprintf("%s:%d", EventIterationEnd, ev.Round))
}

func (r *recorder) StepStart(_ context.Context, ev StepEvent) {
	r.mu.Lock()
	r.steps = append(r.steps, ev)
	r.mu.Unlock()
	r.add(EventStepStart + ":" + string(ev.Step))
}

func (r *recorder) StepEnd(_ context.Context, ev StepEvent) {
	r.mu.Lock()
	r.steps = append(r.steps, ev)
	r.mu.Unlock()
	r.add(EventStepEnd + ":" + string(ev.Step))
}

func (r *recorder) LogMessage(_ context.Context, ev LogEvent) {
	r.mu.Lock()
	r.logs = append(r.logs, ev.Message)
	r.mu.Unlock()
}

// logsOnly implements a single handler; everything else falls through to NopObserver.
type logsOnly struct {
	NopObserver
	got []string
}

func (l *logsOnly) LogMessage(_ context.Context, ev LogEvent) { l.got = append(l.got, ev.Message) }

func TestBusNotifiesInRegistrationOrder(t *testing.T) {
	var order []string
	a := &recorder{id: "a", sink: &order}
	b := &recorder{id: "b", sink: &order}
	bus := NewBus(a, nil, b)
	ctx := context.Background()

	bus.IterationStart(ctx, IterationEvent{Round: 1})
	bus.StepStart(ctx, StepEvent{Round: 1, Step: StepPlan})
	bus.StepEnd(ctx, StepEvent{Round: 1, Step: StepPlan})
	bus.IterationEnd(ctx, IterationEvent{Round: 1})

	want := []string{
		"a:iteration_start:1", "b:iteration_start:1",
		"a:step_start:Plan", "b:step_start:Plan",
		"a:step_end:Plan", "b:step_end:Plan",
		"a:iteration_end:1", "b:iteration_end:1",
	}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Fatalf("order = %v\nwant %v", order, want)
	}
}

func TestBusSkipsHandlersObserverDoesNotImplement(t *testing.T) {
	partial := &logsOnly{}
	bus := NewBus(partial)
	ctx := context.Background()

	bus.IterationStart(ctx, IterationEvent{Round: 1})
	bus.StepStart(ctx, StepEvent{Step: StepResearch})
	bus.Log(ctx, "hello")

	if len(partial.got) != 1 || partial.got[0] != "hello" {
		t.Fatalf("log handler got %v", partial.got)
	}
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *Bus
	ctx := context.Background()
	bus.IterationStart(ctx, IterationEvent{})
	bus.StepStart(ctx, StepEvent{})
	bus.StepEnd(ctx, StepEvent{})
	bus.IterationEnd(ctx, IterationEvent{})
	bus.Log(ctx, "dropped")
}
