package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Objective is a research topic weighted by the agent's current expertise in it.
type Objective struct {
	Topic     string  `json:"topic"`
	Expertise float64 `json:"expertise"`
}

// Resource is a discovered URL tracked by the ResourcePool.
type Resource struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Visited     bool   `json:"visited"`
	Content     string `json:"content,omitempty"`
}

// ResearchTask is a single planned tool invocation.
type ResearchTask struct {
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args"`
	Reasoning string          `json:"reasoning"`
}

// ResearchResult is a ResearchTask together with what the tool returned.
type ResearchResult struct {
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args"`
	Reasoning string          `json:"reasoning"`
	Result    any             `json:"result"`
	Citation  string          `json:"citation,omitempty"`
}

// Narrative is the markdown report produced by the Narrate stage.
type Narrative struct {
	Markdown string `json:"markdown"`
}

// Findings is the state carried from one iteration to the next.
type Findings struct {
	Narrative           string      `json:"narrative"`
	Remark              string      `json:"remark"`
	GeneratedObjectives []Objective `json:"generated_objectives"`
}

// InitialFindings returns the findings a run starts with.
func InitialFindings() Findings {
	return Findings{Narrative: "Nothing", Remark: "", GeneratedObjectives: []Objective{}}
}

// Clone returns a copy that shares no slices with f.
func (f Findings) Clone() Findings {
	f.GeneratedObjectives = cloneObjectives(f.GeneratedObjectives)
	return f
}

// ToolOutput is what a Tool hands back to the Research stage.
type ToolOutput struct {
	Result   any    `json:"result"`
	Citation string `json:"citation,omitempty"`
}

// Tool is an external information-gathering capability, dispatched by exact name.
type Tool interface {
	Name() string
	Description() string
	// ArgsSchema describes the accepted arguments as a JSON Schema object.
	ArgsSchema() map[string]any
	Run(ctx context.Context, args json.RawMessage) (ToolOutput, error)
}

// ErrToolNotFound is returned by a ToolSet for names it does not hold.
var ErrToolNotFound = errors.New("tool not found")

// ToolSet resolves the tool a task names and checks the task arguments
// before the call.
type ToolSet interface {
	Lookup(name string) (Tool, error)
	ValidateArgs(name string, args json.RawMessage) error
}

// ToolsByName is a ToolSet over a plain list. It accepts any arguments.
func ToolsByName(tools ...Tool) ToolSet {
	m := make(toolMap, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return m
}

type toolMap map[string]Tool

func (m toolMap) Lookup(name string) (Tool, error) {
	t, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

func (m toolMap) ValidateArgs(name string, _ json.RawMessage) error {
	_, err := m.Lookup(name)
	return err
}

// Role of a completion message author.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one entry of a completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Step names the four pipeline stages.
type Step string

const (
	StepPlan     Step = "Plan"
	StepResearch Step = "Research"
	StepNarrate  Step = "Narrate"
	StepEvaluate Step = "Evaluate"
)

// PlanInputs is what the Plan stage consumes.
type PlanInputs struct {
	Objectives []Objective `json:"objectives"`
	Findings   Findings    `json:"findings"`
}

// PlanOutputs is what the Plan stage produces.
type PlanOutputs struct {
	Tasks []ResearchTask `json:"research_tasks"`
}

// ResearchInputs is what the Research stage consumes.
type ResearchInputs struct {
	Tasks []ResearchTask `json:"research_tasks"`
}

// ResearchOutputs is what the Research stage produces.
type ResearchOutputs struct {
	Results []ResearchResult `json:"research_results"`
}

// NarrateInputs is what the Narrate stage consumes.
type NarrateInputs struct {
	Objectives []Objective      `json:"objectives"`
	Findings   Findings         `json:"findings"`
	Results    []ResearchResult `json:"research_results"`
}

// NarrateOutputs is what the Narrate stage produces.
type NarrateOutputs struct {
	Narrative Narrative `json:"narrative"`
}

// EvaluateInputs is what the Evaluate stage consumes.
type EvaluateInputs struct {
	Objectives []Objective `json:"objectives"`
	Findings   Findings    `json:"findings"`
	Narrative  Narrative   `json:"narrative"`
}

// EvaluateOutputs is what the Evaluate stage produces and the next iteration starts from.
type EvaluateOutputs struct {
	Objectives []Objective `json:"updated_objectives"`
	Findings   Findings    `json:"updated_findings"`
}

func cloneObjectives(in []Objective) []Objective {
	out := make([]Objective, len(in))
	copy(out, in)
	return out
}
