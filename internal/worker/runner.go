// Package worker builds and executes research runs from configuration.
// The CLI runs one in the foreground; the server keeps at most one active.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/internal/capability"
	"github.com/mohammad-safakhou/researcher/internal/queue/natsbus"
	"github.com/mohammad-safakhou/researcher/internal/queue/streams"
	"github.com/mohammad-safakhou/researcher/internal/session"
	"github.com/mohammad-safakhou/researcher/internal/store"
	"github.com/mohammad-safakhou/researcher/tools/toolkit"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run triggers.
const (
	TriggerManual   = "manual"
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

// Journal is the subset of the run store a Runner writes to.
type Journal interface {
	store.JournalWriter
	CreateRun(ctx context.Context, run store.RunRecord) error
	FinishRun(ctx context.Context, id string, runErr error, narrative string) error
}

// ToolsetFactory builds the tools of one run over its pool.
type ToolsetFactory func(pool *core.ResourcePool) ([]core.Tool, func() error, error)

// Deps are the long-lived collaborators shared by every run. Only Config and
// Completer are required.
type Deps struct {
	Config    *config.Config
	Completer core.Completer
	Journal   Journal
	Redis     redis.Cmdable
	Schemas   *streams.SchemaRegistry
	NATS      *nats.Conn
	Tools     ToolsetFactory
	Logger    *zap.Logger
}

// Request describes a run. Zero fields fall back to the research config.
type Request struct {
	Role       string
	Iterations int
	Objectives []core.Objective
	Trigger    string
}

// Runner turns Requests into prepared runs.
type Runner struct {
	deps   Deps
	logger *zap.Logger
}

func NewRunner(deps Deps) (*Runner, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.Completer == nil {
		return nil, errors.New("completer is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Tools == nil {
		cfg, logger := deps.Config.Tools, deps.Logger
		deps.Tools = func(pool *core.ResourcePool) ([]core.Tool, func() error, error) {
			tk, err := toolkit.New(cfg, pool, logger.Named("tools"))
			if err != nil {
				return nil, nil, err
			}
			return tk.Tools(), tk.Close, nil
		}
	}
	if deps.Redis != nil && deps.Schemas == nil {
		reg := streams.NewSchemaRegistry()
		if err := streams.RegisterBaseSchemas(reg); err != nil {
			return nil, fmt.Errorf("event schemas: %w", err)
		}
		deps.Schemas = reg
	}
	return &Runner{deps: deps, logger: deps.Logger.Named("worker")}, nil
}

// Run is a prepared research run.
type Run struct {
	ID      string
	Request Request
	State   *session.State
	Tools   *capability.Registry

	orch    *core.Orchestrator
	journal Journal
	cleanup func() error
	logger  *zap.Logger
}

// Resolve fills the zero fields of req from the research config.
func (r *Runner) Resolve(req Request) Request {
	rc := r.deps.Config.Research
	if strings.TrimSpace(req.Role) == "" {
		req.Role = rc.Role
	}
	if req.Iterations == 0 {
		req.Iterations = rc.Iterations
	}
	if len(req.Objectives) == 0 {
		for _, o := range rc.Objectives {
			req.Objectives = append(req.Objectives, core.Objective{Topic: o.Topic, Expertise: o.Expertise})
		}
	}
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}
	return req
}

// Prepare builds the tools, observers and orchestrator of a run without
// starting it.
func (r *Runner) Prepare(req Request) (*Run, error) {
	req = r.Resolve(req)
	if len(req.Objectives) == 0 {
		return nil, errors.New("at least one objective is required")
	}
	id := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", id))
	pool := core.NewResourcePool()

	tools, cleanup, err := r.deps.Tools(pool)
	if err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}
	if cleanup == nil {
		cleanup = func() error { return nil }
	}
	registry, err := capability.NewRegistry(tools)
	if err != nil {
		_ = cleanup()
		return nil, err
	}

	state := session.New(id, req.Role, req.Objectives, pool)
	rc := r.deps.Config.Research
	orch, err := core.NewOrchestrator(core.RunConfig{
		RunID:          id,
		Role:           req.Role,
		Iterations:     req.Iterations,
		Objectives:     req.Objectives,
		Tools:          registry.Tools(),
		ToolSet:        registry,
		Completer:      session.NewRecordingCompleter(r.deps.Completer, state),
		Observers:      r.observers(id, state),
		Pool:           pool,
		MaxTasks:       rc.MaxTasks,
		ChunkThreshold: rc.ChunkThreshold,
		MaxGenerated:   rc.MaxGenerated,
		MaxParallel:    rc.MaxParallel,
		Retry: core.RetryPolicy{
			MaxAttempts:    r.deps.Config.LLM.MaxAttempts,
			InitialBackoff: r.deps.Config.LLM.InitialBackoff,
		},
		Logger: r.deps.Logger,
	})
	if err != nil {
		_ = cleanup()
		return nil, err
	}
	return &Run{
		ID:      id,
		Request: req,
		State:   state,
		Tools:   registry,
		orch:    orch,
		journal: r.deps.Journal,
		cleanup: cleanup,
		logger:  logger,
	}, nil
}

func (r *Runner) observers(runID string, state *session.State) []core.Observer {
	obs := []core.Observer{
		core.NewLogObserver(r.deps.Logger.Named("events")),
		core.NewTelemetryObserver(nil, r.deps.Logger),
		state,
	}
	events := r.deps.Config.Events
	if r.deps.Redis != nil && events.RedisStream != "" {
		pub, err := streams.NewPublisher(r.deps.Redis, r.deps.Schemas, events.RedisStream, events.RedisMaxLen)
		if err != nil {
			r.logger.Warn("redis event stream disabled", zap.Error(err))
		} else {
			obs = append(obs, streams.NewObserver(pub, runID, r.deps.Logger))
		}
	}
	if r.deps.NATS != nil {
		obs = append(obs, natsbus.NewObserver(r.deps.NATS, events.NATSSubject, runID, r.deps.Logger))
	}
	if r.deps.Journal != nil {
		obs = append(obs, store.NewJournal(r.deps.Journal, runID, r.deps.Logger))
	}
	return obs
}

// Execute runs every iteration and records the outcome in the state and the
// journal. Journal failures are logged; the run error is returned as is.
func (run *Run) Execute(ctx context.Context) error {
	defer func() {
		if err := run.cleanup(); err != nil {
			run.logger.Warn("tool cleanup", zap.Error(err))
		}
	}()
	if run.journal != nil {
		err := run.journal.CreateRun(ctx, store.RunRecord{
			ID:         run.ID,
			Role:       run.Request.Role,
			Objectives: run.Request.Objectives,
			Iterations: run.Request.Iterations,
			Trigger:    run.Request.Trigger,
		})
		if err != nil {
			run.logger.Warn("journal create run", zap.Error(err))
			run.journal = nil
		}
	}

	run.State.Begin()
	err := run.orch.Run(ctx)
	run.State.Finish(err)

	if run.journal != nil {
		// The run context may already be cancelled.
		if jerr := run.journal.FinishRun(context.WithoutCancel(ctx), run.ID, err, run.State.Narrative()); jerr != nil {
			run.logger.Warn("journal finish run", zap.Error(jerr))
		}
	}
	return err
}

// Catalog builds the configured tools over a throwaway pool and returns
// their registry.
func (r *Runner) Catalog() (*capability.Registry, error) {
	tools, cleanup, err := r.deps.Tools(core.NewResourcePool())
	if err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}
	if cleanup != nil {
		defer func() { _ = cleanup() }()
	}
	return capability.NewRegistry(tools)
}
