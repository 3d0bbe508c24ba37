package streams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TailConfig describes a consumer-group reader over one run-event stream.
type TailConfig struct {
	Stream string
	Group  string
	Name   string
	// From is where a new group starts: "$" for new events, "0" to replay.
	From string
	// RunID, when set, drops events of other runs (they are still acked).
	RunID string
	Batch int64
	Block time.Duration
	// ClaimIdle, when set, lets Follow take over entries another consumer
	// left pending for at least this long.
	ClaimIdle time.Duration
}

// Delivery is one decoded run event.
type Delivery struct {
	ID       string
	Envelope Envelope
}

// Tail reads run events back through a consumer group. Undecodable or
// schema-invalid entries are acked and skipped so they never block the group.
// A new Tail first re-reads the entries its consumer name left unacked.
type Tail struct {
	client   redis.Cmdable
	registry *SchemaRegistry
	cfg      TailConfig
	logger   *zap.Logger
	// cursor is "0" while the consumer's pending entries are replayed, then ">".
	cursor string
}

func NewTail(client redis.Cmdable, registry *SchemaRegistry, cfg TailConfig, logger *zap.Logger) (*Tail, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Stream == "" || cfg.Group == "" || cfg.Name == "" {
		return nil, errors.New("stream, group and consumer name are required")
	}
	if cfg.From == "" {
		cfg.From = "$"
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tail{client: client, registry: registry, cfg: cfg, logger: logger.Named("tail"), cursor: "0"}, nil
}

// EnsureGroup creates the consumer group (and the stream) unless it exists.
func (t *Tail) EnsureGroup(ctx context.Context) error {
	err := t.client.XGroupCreateMkStream(ctx, t.cfg.Stream, t.cfg.Group, t.cfg.From).Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Reclaim moves entries idle for ClaimIdle or longer from other consumers
// of the group to this one, so Next replays them. It returns how many moved.
func (t *Tail) Reclaim(ctx context.Context) (int, error) {
	if t.cfg.ClaimIdle <= 0 {
		return 0, nil
	}
	claimed, start := 0, "0-0"
	for {
		msgs, next, err := t.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   t.cfg.Stream,
			Group:    t.cfg.Group,
			Consumer: t.cfg.Name,
			MinIdle:  t.cfg.ClaimIdle,
			Start:    start,
			Count:    t.cfg.Batch,
		}).Result()
		if err != nil {
			return claimed, fmt.Errorf("xautoclaim: %w", err)
		}
		claimed += len(msgs)
		if next == "0-0" || next == "" {
			break
		}
		start = next
	}
	if claimed > 0 {
		t.cursor = "0"
	}
	return claimed, nil
}

// Next returns the decoded events of one batch. Pending entries of this
// consumer come first; after that it blocks up to the configured duration
// for new ones. Nothing is acked except entries that were skipped.
func (t *Tail) Next(ctx context.Context) ([]Delivery, error) {
	msgs, err := t.read(ctx)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 && t.cursor == "0" {
		t.cursor = ">"
		if msgs, err = t.read(ctx); err != nil {
			return nil, err
		}
	}

	var (
		out  []Delivery
		skip []string
	)
	for _, msg := range msgs {
		env, err := t.decode(msg)
		if err != nil {
			t.logger.Debug("skipping stream entry", zap.String("id", msg.ID), zap.Error(err))
			skip = append(skip, msg.ID)
			continue
		}
		if t.cfg.RunID != "" && env.RunID != t.cfg.RunID {
			skip = append(skip, msg.ID)
			continue
		}
		out = append(out, Delivery{ID: msg.ID, Envelope: env})
	}
	if err := t.Ack(ctx, skip...); err != nil {
		return nil, err
	}
	return out, nil
}

// read issues one XREADGROUP at the current cursor. History reads ("0")
// return at once; Block applies only to new entries.
func (t *Tail) read(ctx context.Context) ([]redis.XMessage, error) {
	args := &redis.XReadGroupArgs{
		Group:    t.cfg.Group,
		Consumer: t.cfg.Name,
		Streams:  []string{t.cfg.Stream, t.cursor},
		Count:    t.cfg.Batch,
		Block:    -1,
	}
	if t.cursor == ">" {
		args.Block = t.cfg.Block
	}
	res, err := t.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	var msgs []redis.XMessage
	for _, st := range res {
		msgs = append(msgs, st.Messages...)
	}
	return msgs, nil
}

// Ack acknowledges the given entry ids.
func (t *Tail) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := t.client.XAck(ctx, t.cfg.Stream, t.cfg.Group, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// Follow hands every event to fn and acks each batch once fn accepted all of
// it, until ctx is done. A handler error stops the loop with the batch
// unacked; the next Follow under the same name replays it.
func (t *Tail) Follow(ctx context.Context, fn func(Delivery) error) error {
	if err := t.EnsureGroup(ctx); err != nil {
		return err
	}
	if n, err := t.Reclaim(ctx); err != nil {
		return err
	} else if n > 0 {
		t.logger.Info("reclaimed idle entries", zap.Int("count", n))
	}
	for ctx.Err() == nil {
		batch, err := t.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		ids := make([]string, 0, len(batch))
		for _, d := range batch {
			if err := fn(d); err != nil {
				return err
			}
			ids = append(ids, d.ID)
		}
		if err := t.Ack(ctx, ids...); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tail) decode(msg redis.XMessage) (Envelope, error) {
	var raw []byte
	switch v := msg.Values["envelope"].(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		return Envelope{}, errors.New("missing envelope field")
	default:
		return Envelope{}, fmt.Errorf("unexpected envelope type %T", v)
	}
	env, err := UnmarshalEnvelope(raw)
	if err != nil {
		return Envelope{}, err
	}
	if t.registry != nil {
		if err := t.registry.Validate(env.EventType, env.PayloadVersion, env.Data); err != nil {
			return Envelope{}, err
		}
	}
	return env, nil
}

