// Package session keeps the live, API-visible state of a research run.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
)

// Phase is the coarse lifecycle of a run.
type Phase string

const (
	PhasePending  Phase = "pending"
	PhaseRunning  Phase = "running"
	PhaseFinished Phase = "finished"
	PhaseFailed   Phase = "failed"
)

// DefaultMaxEntries bounds each of the agent, narrative and llm logs.
const DefaultMaxEntries = 1000

type Status struct {
	Step  string `json:"step"`
	Round int    `json:"round"`
}

type AgentLog struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Round     int       `json:"round"`
}

type NarrativeEntry struct {
	Markdown string `json:"markdown"`
	Round    int    `json:"round"`
}

type LLMLog struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

type ResourceView struct {
	URL         string `json:"url"`
	Description string `json:"description"`
	Visited     bool   `json:"visited"`
}

type ResourcePoolView struct {
	Resources []ResourceView `json:"resources"`
}

// Snapshot is the JSON document served at /api/state.
type Snapshot struct {
	RunID        string           `json:"run_id"`
	Phase        Phase            `json:"phase"`
	Error        string           `json:"error,omitempty"`
	StartTime    string           `json:"start_time"`
	EndTime      string           `json:"end_time"`
	AgentRole    string           `json:"agent_role"`
	Status       Status           `json:"status"`
	Objectives   []core.Objective `json:"objectives"`
	Findings     core.Findings    `json:"findings"`
	AgentLogs    []AgentLog       `json:"agent_logs"`
	Narratives   []NarrativeEntry `json:"narratives"`
	ResourcePool ResourcePoolView `json:"resource_pool"`
	LLMLogs      []LLMLog         `json:"llm_logs"`
}

// State is a bus observer that folds run events into a Snapshot. It is
// written by the run goroutine and read by HTTP handlers.
type State struct {
	core.NopObserver

	mu         sync.RWMutex
	runID      string
	role       string
	phase      Phase
	err        string
	start      time.Time
	end        time.Time
	status     Status
	objectives []core.Objective
	findings   core.Findings
	agentLogs  []AgentLog
	narratives []NarrativeEntry
	llmLogs    []LLMLog
	pool       *core.ResourcePool
	maxEntries int
	now        func() time.Time
}

// New returns a pending state for a run over pool.
func New(runID, role string, objectives []core.Objective, pool *core.ResourcePool) *State {
	return &State{
		runID:      runID,
		role:       role,
		phase:      PhasePending,
		objectives: append([]core.Objective(nil), objectives...),
		findings:   core.InitialFindings(),
		pool:       pool,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
}

func (s *State) RunID() string { return s.runID }

// Begin marks the run started.
func (s *State) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseRunning
	s.start = s.now()
}

// Finish records the run outcome; a nil err means success.
func (s *State) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end = s.now()
	s.status.Step = ""
	if err != nil {
		s.phase = PhaseFailed
		s.err = err.Error()
		return
	}
	s.phase = PhaseFinished
}

// Phase returns the current lifecycle phase.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Done reports whether the run reached a terminal phase.
func (s *State) Done() bool {
	p := s.Phase()
	return p == PhaseFinished || p == PhaseFailed
}

func (s *State) IterationStart(_ context.Context, ev core.IterationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{Round: ev.Round}
	s.objectives = ev.Objectives
	s.findings = ev.Findings
}

func (s *State) IterationEnd(_ context.Context, ev core.IterationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Step = ""
	s.objectives = ev.Objectives
	s.findings = ev.Findings
}

func (s *State) StepStart(_ context.Context, ev core.StepEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{Step: string(ev.Step), Round: ev.Round}
}

func (s *State) StepEnd(_ context.Context, ev core.StepEvent) {
	out, ok := ev.Outputs.(core.NarrateOutputs)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.narratives = appendBounded(s.narratives, NarrativeEntry{Markdown: out.Narrative.Markdown, Round: ev.Round}, s.maxEntries)
}

func (s *State) LogMessage(_ context.Context, ev core.LogEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentLogs = appendBounded(s.agentLogs, AgentLog{Timestamp: ev.Time, Message: ev.Message, Round: s.status.Round}, s.maxEntries)
}

// RecordLLM appends one prompt/response exchange.
func (s *State) RecordLLM(prompt, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.llmLogs = appendBounded(s.llmLogs, LLMLog{Prompt: prompt, Response: response}, s.maxEntries)
}

// Narrative returns the latest narrative, or "" before the first Narrate step.
func (s *State) Narrative() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.narratives) == 0 {
		return ""
	}
	return s.narratives[len(s.narratives)-1].Markdown
}

// Snapshot returns a copy safe to serialise while the run continues.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		RunID:      s.runID,
		Phase:      s.phase,
		Error:      s.err,
		StartTime:  formatTime(s.start),
		EndTime:    formatTime(s.end),
		AgentRole:  s.role,
		Status:     s.status,
		Objectives: append([]core.Objective{}, s.objectives...),
		Findings:   s.findings.Clone(),
		AgentLogs:  append([]AgentLog{}, s.agentLogs...),
		Narratives: append([]NarrativeEntry{}, s.narratives...),
		LLMLogs:    append([]LLMLog{}, s.llmLogs...),
	}
	snap.ResourcePool.Resources = []ResourceView{}
	if s.pool != nil {
		for _, r := range s.pool.All() {
			snap.ResourcePool.Resources = append(snap.ResourcePool.Resources, ResourceView{URL: r.URL, Description: r.Description, Visited: r.Visited})
		}
	}
	return snap
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func appendBounded[T any](list []T, v T, max int) []T {
	list = append(list, v)
	if max > 0 && len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}
