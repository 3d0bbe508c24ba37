package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrRunActive is returned by Launch while another run is in progress.
var ErrRunActive = errors.New("a run is already in progress")

// Launcher executes runs in the background, one at a time, and remembers the
// latest for state queries.
type Launcher struct {
	runner *Runner
	base   context.Context
	logger *zap.Logger

	mu      sync.Mutex
	current *Run
	wg      sync.WaitGroup
}

// NewLauncher runs every launched run under base; cancelling base stops them.
func NewLauncher(base context.Context, runner *Runner) *Launcher {
	return &Launcher{runner: runner, base: base, logger: runner.logger.Named("launcher")}
}

// Launch prepares req and starts it unless a run is active.
func (l *Launcher) Launch(req Request) (*Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil && !l.current.State.Done() {
		return nil, ErrRunActive
	}
	run, err := l.runner.Prepare(req)
	if err != nil {
		return nil, err
	}
	l.current = run
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := run.Execute(l.base); err != nil {
			l.logger.Error("run failed", zap.String("run_id", run.ID), zap.Error(err))
			return
		}
		l.logger.Info("run finished", zap.String("run_id", run.ID), zap.String("trigger", run.Request.Trigger))
	}()
	return run, nil
}

// Current returns the latest launched run, or nil.
func (l *Launcher) Current() *Run {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Wait blocks until every launched run returned.
func (l *Launcher) Wait() { l.wg.Wait() }
