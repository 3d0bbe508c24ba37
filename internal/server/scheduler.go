package server

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/mohammad-safakhou/researcher/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker is the redis call the scheduler needs to claim a slot.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Scheduler launches the configured run at every cron slot. With a Locker,
// only the replica that claims the slot launches.
type Scheduler struct {
	expr     *cronexpr.Expression
	launcher Launcher
	lock     Locker
	lockTTL  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewScheduler(cronExpr string, launcher Launcher, lock Locker, lockTTL time.Duration, logger *zap.Logger) (*Scheduler, error) {
	expr, err := cronexpr.Parse(cronExpr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Scheduler{expr: expr, launcher: launcher, lock: lock, lockTTL: lockTTL, logger: logger.Named("scheduler"), now: time.Now}, nil
}

// Start blocks until ctx is cancelled, firing at every slot.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		slot := s.expr.Next(s.now())
		if slot.IsZero() {
			s.logger.Warn("cron expression has no future slot")
			return
		}
		timer := time.NewTimer(time.Until(slot))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx, slot)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, slot time.Time) bool {
	if s.lock != nil {
		key := "researcher:schedule:" + strconv.FormatInt(slot.Unix(), 10)
		ok, err := s.lock.SetNX(ctx, key, "1", s.lockTTL).Result()
		if err != nil {
			s.logger.Warn("schedule lock", zap.Error(err))
			return false
		}
		if !ok {
			s.logger.Debug("slot claimed elsewhere", zap.Time("slot", slot))
			return false
		}
	}
	run, err := s.launcher.Launch(worker.Request{Trigger: worker.TriggerSchedule})
	if errors.Is(err, worker.ErrRunActive) {
		s.logger.Info("skipping slot, a run is in progress", zap.Time("slot", slot))
		return false
	}
	if err != nil {
		s.logger.Error("scheduled launch", zap.Error(err))
		return false
	}
	s.logger.Info("scheduled run launched", zap.String("run_id", run.ID), zap.Time("slot", slot))
	return true
}
