package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxTasks caps the number of tasks a single plan may contain.
const DefaultMaxTasks = 5

// Planner is the Plan stage: one completion call that proposes research tasks.
type Planner struct {
	llm      Completer
	pool     *ResourcePool
	tools    []Tool
	bus      *Bus
	role     string
	maxTasks int
	logger   *zap.Logger
}

// NewPlanner builds a Plan stage. llm should already carry the retry discipline.
func NewPlanner(llm Completer, pool *ResourcePool, tools []Tool, bus *Bus, role string, maxTasks int, logger *zap.Logger) *Planner {
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{llm: llm, pool: pool, tools: tools, bus: bus, role: role, maxTasks: maxTasks, logger: logger.Named("planner")}
}

// Plan asks the model for up to maxTasks tasks. A response that is not a JSON
// array of {tool, args, reasoning} objects aborts the stage.
func (p *Planner) Plan(ctx context.Context, objectives []Objective, findings Findings) ([]ResearchTask, error) {
	topics := make([]string, len(objectives))
	for i, o := range objectives {
		topics[i] = "- " + o.Topic
	}
	p.bus.Log(ctx, fmt.Sprintf("Planning to fulfill %d objectives\n%s", len(objectives), strings.Join(topics, "\n")))

	var unvisited []Resource
	if p.pool != nil {
		unvisited = p.pool.Unvisited()
	}
	response, err := p.llm.Complete(ctx, planMessages(p.role, objectives, findings, unvisited, p.tools, p.maxTasks))
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	var raw []struct {
		Tool      string          `json:"tool"`
		Args      json.RawMessage `json:"args"`
		Reasoning string          `json:"reasoning"`
	}
	if err := decodeResponse(response, planSchema, &raw); err != nil {
		return nil, err
	}
	if len(raw) > p.maxTasks {
		p.logger.Warn("plan exceeds task cap, truncating", zap.Int("tasks", len(raw)), zap.Int("max", p.maxTasks))
		p.bus.Log(ctx, fmt.Sprintf("Plan proposed %d tasks; keeping the first %d", len(raw), p.maxTasks))
		raw = raw[:p.maxTasks]
	}

	tasks := make([]ResearchTask, len(raw))
	for i, t := range raw {
		tasks[i] = ResearchTask{Tool: t.Tool, Args: t.Args, Reasoning: t.Reasoning}
	}
	p.logger.Debug("plan ready", zap.Int("tasks", len(tasks)))
	return tasks, nil
}
