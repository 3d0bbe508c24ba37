package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func task(tool, arg string) ResearchTask {
	raw, _ := json.Marshal(arg)
	return ResearchTask{Tool: tool, Args: raw, Reasoning: "because"}
}

func TestResearchSkipsUnknownTools(t *testing.T) {
	echo := &echoTool{}
	logs := &logsOnly{}
	r := NewResearcher(ToolsByName(echo), NewBus(logs), 1, nil)

	results, err := r.Research(context.Background(), []ResearchTask{task("Echo", "a"), task("Nope", "b"), task("Echo", "c")})
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Result != "a" || results[1].Result != "c" {
		t.Fatalf("results out of order: %+v", results)
	}
	if results[0].Citation != "echo: a" || results[0].Reasoning != "because" {
		t.Fatalf("task fields not carried: %+v", results[0])
	}
	want := []string{"Executing 3 research tasks", `  Task 1) Echo "a"`, `  Task 2) Nope "b"`, `  Task 3) Echo "c"`}
	if fmt.Sprint(logs.got) != fmt.Sprint(want) {
		t.Fatalf("logs = %q", logs.got)
	}
}

func TestResearchToolErrorIsFatal(t *testing.T) {
	r := NewResearcher(ToolsByName(&echoTool{}, failingTool{err: errToolDown}), nil, 1, nil)
	_, err := r.Research(context.Background(), []ResearchTask{task("Echo", "a"), task("Broken", "b")})
	if !errors.Is(err, errToolDown) {
		t.Fatalf("expected tool error, got %v", err)
	}
}

// slowTool sleeps longer for earlier tasks so completion order inverts task order.
type slowTool struct{}

func (slowTool) Name() string               { return "Slow" }
func (slowTool) Description() string        { return "" }
func (slowTool) ArgsSchema() map[string]any { return nil }
func (slowTool) Run(ctx context.Context, args json.RawMessage) (ToolOutput, error) {
	var n int
	_ = json.Unmarshal(args, &n)
	select {
	case <-time.After(time.Duration(5-n) * 5 * time.Millisecond):
	case <-ctx.Done():
		return ToolOutput{}, ctx.Err()
	}
	return ToolOutput{Result: n}, nil
}

func TestResearchParallelKeepsTaskOrder(t *testing.T) {
	r := NewResearcher(ToolsByName(slowTool{}), nil, 4, nil)
	var tasks []ResearchTask
	for i := 0; i < 5; i++ {
		tasks = append(tasks, ResearchTask{Tool: "Slow", Args: json.RawMessage(fmt.Sprint(i))})
	}
	tasks = append(tasks, task("Missing", "x"))

	results, err := r.Research(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Result != i {
			t.Fatalf("result %d = %v", i, res.Result)
		}
	}
}

func TestResearchParallelStopsOnFirstError(t *testing.T) {
	r := NewResearcher(ToolsByName(slowTool{}, failingTool{err: errToolDown}), nil, 3, nil)
	tasks := []ResearchTask{
		{Tool: "Slow", Args: json.RawMessage("0")},
		task("Broken", "x"),
		{Tool: "Slow", Args: json.RawMessage("1")},
	}
	if _, err := r.Research(context.Background(), tasks); !errors.Is(err, errToolDown) {
		t.Fatalf("expected tool error, got %v", err)
	}
}

var errBadArgs = errors.New("query is required")

// strictSet rejects every argument list that is not a JSON object with a query.
type strictSet struct{ ToolSet }

func (s strictSet) ValidateArgs(name string, args json.RawMessage) error {
	if _, err := s.Lookup(name); err != nil {
		return err
	}
	var obj map[string]any
	if json.Unmarshal(args, &obj) != nil || obj["query"] == nil {
		return errBadArgs
	}
	return nil
}

func TestResearchRejectsInvalidArgsBeforeRunning(t *testing.T) {
	echo := &echoTool{}
	r := NewResearcher(strictSet{ToolsByName(echo)}, nil, 1, nil)

	ok := ResearchTask{Tool: "Echo", Args: json.RawMessage(`{"query":"go"}`)}
	results, err := r.Research(context.Background(), []ResearchTask{ok, task("Missing", "x")})
	if err != nil || len(results) != 1 {
		t.Fatalf("Research = %d results, %v", len(results), err)
	}

	_, err = r.Research(context.Background(), []ResearchTask{{Tool: "Echo", Args: json.RawMessage(`{"limit":3}`)}})
	if !errors.Is(err, errBadArgs) {
		t.Fatalf("expected args error, got %v", err)
	}
	echo.mu.Lock()
	defer echo.mu.Unlock()
	if len(echo.calls) != 1 {
		t.Fatalf("tool ran %d times, want 1", len(echo.calls))
	}
}
