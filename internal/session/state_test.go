package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
)

func TestStateFoldsEvents(t *testing.T) {
	pool := core.NewResourcePool()
	pool.Add("https://a.example", "A", "")
	objectives := []core.Objective{{Topic: "Go", Expertise: 0.1}}
	s := New("run-1", "a Research Assistant", objectives, pool)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	s.Begin()
	s.IterationStart(ctx, core.IterationEvent{Round: 1, Objectives: objectives, Findings: core.InitialFindings()})
	s.StepStart(ctx, core.StepEvent{Round: 1, Step: core.StepNarrate})
	s.LogMessage(ctx, core.LogEvent{Time: fixed, Message: "Narrating"})

	mid := s.Snapshot()
	if mid.Status.Step != "Narrate" || mid.Status.Round != 1 || mid.Phase != PhaseRunning {
		t.Fatalf("unexpected status %+v", mid)
	}

	s.StepEnd(ctx, core.StepEvent{Round: 1, Step: core.StepNarrate, Outputs: core.NarrateOutputs{Narrative: core.Narrative{Markdown: "# Go"}}})
	s.StepEnd(ctx, core.StepEvent{Round: 1, Step: core.StepPlan, Outputs: core.PlanOutputs{}})
	updated := []core.Objective{{Topic: "Go", Expertise: 0.6}}
	s.IterationEnd(ctx, core.IterationEvent{Round: 1, Objectives: updated, Findings: core.Findings{Narrative: "# Go", Remark: "more"}})
	s.Finish(nil)

	snap := s.Snapshot()
	if snap.Phase != PhaseFinished || snap.StartTime != "2024-05-01T12:00:00Z" || snap.EndTime == "" {
		t.Fatalf("unexpected lifecycle %+v", snap)
	}
	if len(snap.Narratives) != 1 || snap.Narratives[0].Markdown != "# Go" || s.Narrative() != "# Go" {
		t.Fatalf("unexpected narratives %+v", snap.Narratives)
	}
	if len(snap.AgentLogs) != 1 || snap.AgentLogs[0].Round != 1 {
		t.Fatalf("unexpected logs %+v", snap.AgentLogs)
	}
	if snap.Objectives[0].Expertise != 0.6 || snap.Findings.Remark != "more" {
		t.Fatalf("iteration end not applied %+v", snap)
	}
	if len(snap.ResourcePool.Resources) != 1 || snap.ResourcePool.Resources[0].URL != "https://a.example/" {
		t.Fatalf("unexpected pool view %+v", snap.ResourcePool)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var shape map[string]any
	_ = json.Unmarshal(raw, &shape)
	for _, key := range []string{"start_time", "end_time", "agent_role", "status", "objectives", "findings", "agent_logs", "narratives", "resource_pool", "llm_logs"} {
		if _, ok := shape[key]; !ok {
			t.Fatalf("snapshot missing %q", key)
		}
	}
}

func TestStateFinishWithError(t *testing.T) {
	s := New("r", "role", nil, nil)
	s.Begin()
	s.Finish(errors.New("boom"))
	if !s.Done() || s.Snapshot().Error != "boom" || s.Phase() != PhaseFailed {
		t.Fatalf("unexpected failed snapshot %+v", s.Snapshot())
	}
}

func TestStateBoundsLogs(t *testing.T) {
	s := New("r", "role", nil, nil)
	s.maxEntries = 2
	for _, m := range []string{"a", "b", "c"} {
		s.LogMessage(context.Background(), core.LogEvent{Message: m})
	}
	logs := s.Snapshot().AgentLogs
	if len(logs) != 2 || logs[0].Message != "b" {
		t.Fatalf("expected the two newest logs, got %+v", logs)
	}
}

func TestRecordingCompleter(t *testing.T) {
	s := New("r", "role", nil, nil)
	calls := 0
	next := core.CompleterFunc(func(context.Context, []core.Message) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("rate limited")
		}
		return "ok", nil
	})
	rec := NewRecordingCompleter(next, s)
	msgs := []core.Message{{Role: core.RoleSystem, Content: "sys"}, {Role: core.RoleUser, Content: "hi"}}

	if _, err := rec.Complete(context.Background(), msgs); err == nil {
		t.Fatalf("expected first call to fail")
	}
	if got, err := rec.Complete(context.Background(), msgs); err != nil || got != "ok" {
		t.Fatalf("Complete = %q, %v", got, err)
	}
	logs := s.Snapshot().LLMLogs
	if len(logs) != 1 || logs[0].Prompt != "System: sys\n\nHuman: hi" || logs[0].Response != "ok" {
		t.Fatalf("unexpected llm logs %+v", logs)
	}
}
