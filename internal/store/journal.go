package store

import (
	"context"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"go.uber.org/zap"
)

// JournalWriter is the part of Store a Journal needs.
type JournalWriter interface {
	SaveIteration(ctx context.Context, rec IterationRecord) error
	SaveNarrative(ctx context.Context, runID string, round int, markdown string) error
}

// Journal is a run observer that persists iteration state and narratives.
// Write failures are logged; the run continues.
type Journal struct {
	core.NopObserver
	w      JournalWriter
	runID  string
	logger *zap.Logger
}

func NewJournal(w JournalWriter, runID string, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{w: w, runID: runID, logger: logger.Named("journal")}
}

func (j *Journal) IterationEnd(ctx context.Context, ev core.IterationEvent) {
	rec := IterationRecord{RunID: j.runID, Round: ev.Round, Objectives: ev.Objectives, Findings: ev.Findings}
	if err := j.w.SaveIteration(ctx, rec); err != nil {
		j.logger.Warn("journal iteration", zap.String("run_id", j.runID), zap.Int("round", ev.Round), zap.Error(err))
	}
}

func (j *Journal) StepEnd(ctx context.Context, ev core.StepEvent) {
	out, ok := ev.Outputs.(core.NarrateOutputs)
	if !ok {
		return
	}
	if err := j.w.SaveNarrative(ctx, j.runID, ev.Round, out.Narrative.Markdown); err != nil {
		j.logger.Warn("journal narrative", zap.String("run_id", j.runID), zap.Int("round", ev.Round), zap.Error(err))
	}
}
