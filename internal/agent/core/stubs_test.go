package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// echoTool returns its argument as the result.
type echoTool struct {
	name  string
	mu    sync.Mutex
	calls []string
}

func (e *echoTool) Name() string {
	if e.name == "" {
		return "Echo"
	}
	return e.name
}
func (e *echoTool) Description() string        { return "Echoes its argument." }
func (e *echoTool) ArgsSchema() map[string]any { return map[string]any{"type": "string"} }

func (e *echoTool) Run(_ context.Context, args json.RawMessage) (ToolOutput, error) {
	var s string
	if err := json.Unmarshal(args, &s); err != nil {
		s = string(args)
	}
	e.mu.Lock()
	e.calls = append(e.calls, s)
	e.mu.Unlock()
	return ToolOutput{Result: s, Citation: "echo: " + s}, nil
}

// failingTool always errors.
type failingTool struct{ err error }

func (f failingTool) Name() string               { return "Broken" }
func (f failingTool) Description() string        { return "Always fails." }
func (f failingTool) ArgsSchema() map[string]any { return map[string]any{} }
func (f failingTool) Run(context.Context, json.RawMessage) (ToolOutput, error) {
	return ToolOutput{}, f.err
}

var errToolDown = errors.New("tool down")

// stageCompleter answers each stage from a fixed script and records prompts.
type stageCompleter struct {
	mu        sync.Mutex
	plan      string
	narrate   func(previous string) string
	evaluate  string
	planCalls int
	prompts   []string
}

func stageOf(messages []Message) Step {
	user := ""
	if len(messages) > 1 {
		user = messages[1].Content
	}
	switch {
	case strings.Contains(user, "# YOUR TASK:"):
		return StepPlan
	case strings.HasPrefix(user, "A research iteration just finished"):
		return StepNarrate
	default:
		return StepEvaluate
	}
}

// previousNarrative pulls the PREVIOUS FINDINGS block out of a narrate prompt.
func previousNarrative(messages []Message) string {
	_, after, ok := strings.Cut(messages[0].Content, "## PREVIOUS FINDINGS:\n```\n")
	if !ok {
		return ""
	}
	before, _, _ := strings.Cut(after, "\n```")
	return before
}

func (s *stageCompleter) Complete(_ context.Context, messages []Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, messages[0].Content+"\n"+messages[len(messages)-1].Content)
	switch stageOf(messages) {
	case StepPlan:
		s.planCalls++
		return s.plan, nil
	case StepNarrate:
		if s.narrate == nil {
			return "# Report", nil
		}
		return s.narrate(previousNarrative(messages)), nil
	default:
		return s.evaluate, nil
	}
}

func twoObjectives() []Objective {
	return []Objective{{Topic: "Go concurrency", Expertise: 0.1}, {Topic: "Go generics", Expertise: 0.2}}
}
