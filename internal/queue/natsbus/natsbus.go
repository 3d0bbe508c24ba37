// Package natsbus mirrors run lifecycle events onto NATS subjects.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Message is the JSON body published for every event.
type Message struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	RunID      string          `json:"run_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials url with reconnects enabled.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("researcher"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// Observer publishes each event on "<prefix>.<event_type>". Failures are
// logged and never reach the run.
type Observer struct {
	conn   publisher
	prefix string
	runID  string
	logger *zap.Logger
	now    func() time.Time
}

func NewObserver(nc *nats.Conn, prefix, runID string, logger *zap.Logger) *Observer {
	return newObserver(nc, prefix, runID, logger)
}

func newObserver(p publisher, prefix, runID string, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{conn: p, prefix: prefix, runID: runID, logger: logger.Named("natsbus"), now: time.Now}
}

// Subject returns the subject used for eventType.
func (o *Observer) Subject(eventType string) string {
	return o.prefix + "." + eventType
}

func (o *Observer) IterationStart(_ context.Context, ev core.IterationEvent) {
	o.publish(core.EventIterationStart, ev)
}

func (o *Observer) IterationEnd(_ context.Context, ev core.IterationEvent) {
	o.publish(core.EventIterationEnd, ev)
}

func (o *Observer) StepStart(_ context.Context, ev core.StepEvent) {
	o.publish(core.EventStepStart, ev)
}

func (o *Observer) StepEnd(_ context.Context, ev core.StepEvent) {
	o.publish(core.EventStepEnd, ev)
}

func (o *Observer) LogMessage(_ context.Context, ev core.LogEvent) {
	o.publish(core.EventLogMessage, ev)
}

func (o *Observer) publish(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.Warn("encode run event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	body, err := json.Marshal(Message{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		RunID:      o.runID,
		OccurredAt: o.now().UTC(),
		Data:       data,
	})
	if err != nil {
		o.logger.Warn("encode run event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := o.conn.Publish(o.Subject(eventType), body); err != nil {
		o.logger.Warn("publish run event", zap.String("subject", o.Subject(eventType)), zap.Error(err))
	}
}
