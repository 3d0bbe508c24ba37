package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var orchestratorTracer trace.Tracer = otel.Tracer("researcher/internal/agent/orchestrator")

// RunConfig is everything a run needs. Completer is the raw backend; the
// orchestrator wraps it with the retry discipline.
type RunConfig struct {
	RunID      string
	Role       string
	Iterations int
	Objectives []Objective
	Tools      []Tool
	// ToolSet dispatches research tasks. ToolsByName(Tools...) when nil.
	ToolSet   ToolSet
	Completer Completer
	Observers []Observer
	// Pool is shared with the tools. A fresh pool is used when nil.
	Pool *ResourcePool

	MaxTasks       int
	ChunkThreshold int
	MaxGenerated   int
	MaxParallel    int
	Retry          RetryPolicy
	RetryOptions   []RetryOption

	Logger *zap.Logger
}

// Validate reports configuration that cannot start a run.
func (c RunConfig) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", c.Iterations)
	}
	if len(c.Objectives) == 0 {
		return errors.New("at least one objective is required")
	}
	if c.Completer == nil {
		return errors.New("completer is required")
	}
	return nil
}

// Orchestrator drives the Plan, Research, Narrate, Evaluate cycle.
type Orchestrator struct {
	id         string
	role       string
	iterations int
	objectives []Objective
	pool       *ResourcePool
	bus        *Bus
	logger     *zap.Logger

	planner    *Planner
	researcher *Researcher
	narrator   *Narrator
	evaluator  *Evaluator
}

// NewOrchestrator wires the four stages around a shared bus and pool.
func NewOrchestrator(cfg RunConfig) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := cfg.RunID
	if id == "" {
		id = uuid.NewString()
	}
	logger = logger.With(zap.String("run_id", id))

	pool := cfg.Pool
	if pool == nil {
		pool = NewResourcePool()
	}
	bus := NewBus(cfg.Observers...)
	toolSet := cfg.ToolSet
	if toolSet == nil {
		toolSet = ToolsByName(cfg.Tools...)
	}

	opts := []RetryOption{WithRetryPolicy(cfg.Retry), WithRetryBus(bus), WithRetryLogger(logger.Named("completion"))}
	llm := NewRetryCompleter(cfg.Completer, append(opts, cfg.RetryOptions...)...)

	return &Orchestrator{
		id:         id,
		role:       cfg.Role,
		iterations: cfg.Iterations,
		objectives: cloneObjectives(cfg.Objectives),
		pool:       pool,
		bus:        bus,
		logger:     logger.Named("orchestrator"),
		planner:    NewPlanner(llm, pool, cfg.Tools, bus, cfg.Role, cfg.MaxTasks, logger),
		researcher: NewResearcher(toolSet, bus, cfg.MaxParallel, logger),
		narrator:   NewNarrator(llm, bus, cfg.Role, cfg.ChunkThreshold, logger),
		evaluator:  NewEvaluator(llm, bus, cfg.Role, cfg.MaxGenerated, logger),
	}, nil
}

// ID returns the run identifier.
func (o *Orchestrator) ID() string { return o.id }

// Pool returns the run's resource pool.
func (o *Orchestrator) Pool() *ResourcePool { return o.pool }

// Run executes exactly the configured number of iterations. Results are
// delivered only through observers; any stage failure aborts the run.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, span := orchestratorTracer.Start(ctx, "research.run",
		trace.WithAttributes(
			attribute.String("run.id", o.id),
			attribute.String("run.role", o.role),
			attribute.Int("run.iterations", o.iterations),
		))
	defer span.End()

	objectives := cloneObjectives(o.objectives)
	findings := InitialFindings()
	o.logger.Info("run started", zap.Int("iterations", o.iterations), zap.Int("objectives", len(objectives)))

	for round := 1; round <= o.iterations; round++ {
		next, err := o.iterate(ctx, round, objectives, findings)
		if err != nil {
			span.SetStatus(codes.Error, "iteration failed")
			o.logger.Error("run aborted", zap.Int("round", round), zap.Error(err))
			return fmt.Errorf("iteration %d: %w", round, err)
		}
		objectives, findings = next.Objectives, next.Findings
	}

	span.SetStatus(codes.Ok, "completed")
	o.logger.Info("run finished", zap.Int("iterations", o.iterations))
	return nil
}

func (o *Orchestrator) iterate(ctx context.Context, round int, objectives []Objective, findings Findings) (EvaluateOutputs, error) {
	ctx, span := orchestratorTracer.Start(ctx, "research.iteration", trace.WithAttributes(attribute.Int("round", round)))
	defer span.End()

	o.bus.IterationStart(ctx, IterationEvent{Round: round, Objectives: cloneObjectives(objectives), Findings: findings.Clone()})

	plan, err := runStep(ctx, o, round, StepPlan,
		PlanInputs{Objectives: cloneObjectives(objectives), Findings: findings.Clone()},
		func(ctx context.Context) (PlanOutputs, error) {
			tasks, err := o.planner.Plan(ctx, objectives, findings)
			return PlanOutputs{Tasks: tasks}, err
		})
	if err != nil {
		return failIteration(span, err)
	}

	research, err := runStep(ctx, o, round, StepResearch,
		ResearchInputs{Tasks: plan.Tasks},
		func(ctx context.Context) (ResearchOutputs, error) {
			results, err := o.researcher.Research(ctx, plan.Tasks)
			return ResearchOutputs{Results: results}, err
		})
	if err != nil {
		return failIteration(span, err)
	}

	narrated, err := runStep(ctx, o, round, StepNarrate,
		NarrateInputs{Objectives: cloneObjectives(objectives), Findings: findings.Clone(), Results: research.Results},
		func(ctx context.Context) (NarrateOutputs, error) {
			n, err := o.narrator.Narrate(ctx, objectives, findings, research.Results)
			return NarrateOutputs{Narrative: n}, err
		})
	if err != nil {
		return failIteration(span, err)
	}

	evaluated, err := runStep(ctx, o, round, StepEvaluate,
		EvaluateInputs{Objectives: cloneObjectives(objectives), Findings: findings.Clone(), Narrative: narrated.Narrative},
		func(ctx context.Context) (EvaluateOutputs, error) {
			return o.evaluator.Evaluate(ctx, objectives, findings, narrated.Narrative)
		})
	if err != nil {
		return failIteration(span, err)
	}

	o.bus.IterationEnd(ctx, IterationEvent{Round: round, Objectives: cloneObjectives(evaluated.Objectives), Findings: evaluated.Findings.Clone()})
	span.SetStatus(codes.Ok, "completed")
	return evaluated, nil
}

// failIteration marks the iteration span failed. The error itself is
// recorded once, on the step span.
func failIteration(span trace.Span, err error) (EvaluateOutputs, error) {
	span.SetStatus(codes.Error, "step failed")
	return EvaluateOutputs{}, err
}

// runStep brackets one stage with step events, a span and a duration sample.
// step_end is only emitted when the stage succeeds.
func runStep[I, O any](ctx context.Context, o *Orchestrator, round int, step Step, in I, fn func(context.Context) (O, error)) (O, error) {
	initCoreMetrics()
	ctx, span := orchestratorTracer.Start(ctx, "research.step."+string(step),
		trace.WithAttributes(attribute.Int("round", round), attribute.String("step", string(step))))
	defer span.End()

	o.bus.StepStart(ctx, StepEvent{Round: round, Step: step, Inputs: in})
	started := time.Now()
	out, err := fn(ctx)
	if stageDuration != nil {
		stageDuration.Record(ctx, time.Since(started).Seconds(), otelmetric.WithAttributes(
			attribute.String("step", string(step)),
			attribute.Bool("error", err != nil)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero O
		return zero, fmt.Errorf("%s: %w", step, err)
	}
	span.SetStatus(codes.Ok, "completed")
	o.bus.StepEnd(ctx, StepEvent{Round: round, Step: step, Inputs: in, Outputs: out})
	return out, nil
}
