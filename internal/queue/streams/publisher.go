package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher appends run events to one Redis stream, trimmed to roughly
// maxLen entries.
type Publisher struct {
	client   redis.Cmdable
	registry *SchemaRegistry
	stream   string
	maxLen   int64
}

// NewPublisher binds a publisher to stream. A nil registry skips payload
// validation; maxLen <= 0 uses DefaultMaxLen.
func NewPublisher(client redis.Cmdable, registry *SchemaRegistry, stream string, maxLen int64) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if stream == "" {
		return nil, errors.New("stream name is required")
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Publisher{client: client, registry: registry, stream: stream, maxLen: maxLen}, nil
}

func (p *Publisher) Stream() string { return p.stream }

// Emit wraps payload in a v1 envelope for runID and appends it.
func (p *Publisher) Emit(ctx context.Context, runID, eventType string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		RunID:          runID,
		OccurredAt:     time.Now().UTC(),
		PayloadVersion: PayloadVersion,
		Data:           data,
	}
	if p.registry != nil {
		if err := p.registry.Validate(env.EventType, env.PayloadVersion, env.Data); err != nil {
			return "", err
		}
	}
	raw, err := env.Marshal()
	if err != nil {
		return "", err
	}
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"envelope": raw, "event_type": env.EventType, "run_id": env.RunID},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}
