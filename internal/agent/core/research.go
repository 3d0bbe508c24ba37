package core

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Researcher is the Research stage: it runs planned tasks against the tool set.
type Researcher struct {
	tools       ToolSet
	bus         *Bus
	maxParallel int
	logger      *zap.Logger
}

// NewResearcher dispatches tasks through tools. maxParallel <= 1 runs tasks
// one at a time.
func NewResearcher(tools ToolSet, bus *Bus, maxParallel int, logger *zap.Logger) *Researcher {
	if tools == nil {
		tools = ToolsByName()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Researcher{tools: tools, bus: bus, maxParallel: maxParallel, logger: logger.Named("research")}
}

// Research executes tasks and returns their results in task order. Tasks
// naming an unknown tool are skipped. Invalid arguments and the first tool
// error abort the stage.
func (r *Researcher) Research(ctx context.Context, tasks []ResearchTask) ([]ResearchResult, error) {
	initCoreMetrics()
	r.bus.Log(ctx, fmt.Sprintf("Executing %d research tasks", len(tasks)))
	for i, t := range tasks {
		r.bus.Log(ctx, fmt.Sprintf("  Task %d) %s %s", i+1, t.Tool, string(t.Args)))
	}

	slots := make([]*ResearchResult, len(tasks))
	if r.maxParallel <= 1 {
		for i, t := range tasks {
			res, err := r.run(ctx, t)
			if err != nil {
				return nil, err
			}
			slots[i] = res
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.maxParallel)
		for i, t := range tasks {
			g.Go(func() error {
				res, err := r.run(gctx, t)
				if err != nil {
					return err
				}
				slots[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	results := make([]ResearchResult, 0, len(tasks))
	for _, s := range slots {
		if s != nil {
			results = append(results, *s)
		}
	}
	return results, nil
}

// run returns nil, nil for an unknown tool.
func (r *Researcher) run(ctx context.Context, t ResearchTask) (*ResearchResult, error) {
	tool, err := r.tools.Lookup(t.Tool)
	if errors.Is(err, ErrToolNotFound) {
		r.logger.Info("skipping task for unknown tool", zap.String("tool", t.Tool))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", t.Tool, err)
	}
	if err := r.tools.ValidateArgs(t.Tool, t.Args); err != nil {
		return nil, fmt.Errorf("tool %s: %w", t.Tool, err)
	}
	out, err := tool.Run(ctx, t.Args)
	if toolCalls != nil {
		toolCalls.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("tool", t.Tool),
			attribute.Bool("error", err != nil)))
	}
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", t.Tool, err)
	}
	return &ResearchResult{
		Tool:      t.Tool,
		Args:      t.Args,
		Reasoning: t.Reasoning,
		Result:    out.Result,
		Citation:  out.Citation,
	}, nil
}
