package streams

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := c.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublishAndTailRunEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	client := startRedis(t)
	reg := baseRegistry(t)
	const stream = "researcher:events"

	tail, err := NewTail(client, reg, TailConfig{Stream: stream, Group: "tail", Name: "t1", From: "0", RunID: "run-1", Block: time.Second}, nil)
	if err != nil {
		t.Fatalf("new tail: %v", err)
	}
	if err := tail.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	pub, err := NewPublisher(client, reg, stream, 100)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	bus := core.NewBus(NewObserver(pub, "run-1", nil), NewObserver(pub, "run-2", nil))
	bus.IterationStart(ctx, core.IterationEvent{Round: 1, Objectives: []core.Objective{{Topic: "Go", Expertise: 0.2}}, Findings: core.InitialFindings()})
	bus.Log(ctx, "Executing 0 research tasks")

	// An entry without an envelope is acknowledged and skipped.
	if err := client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: map[string]any{"junk": "1"}}).Err(); err != nil {
		t.Fatalf("xadd junk: %v", err)
	}

	batch, err := tail.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 events of run-1, got %d", len(batch))
	}
	if batch[0].Envelope.EventType != core.EventIterationStart || batch[1].Envelope.EventType != core.EventLogMessage {
		t.Fatalf("unexpected order %s, %s", batch[0].Envelope.EventType, batch[1].Envelope.EventType)
	}
	if batch[0].Envelope.RunID != "run-1" {
		t.Fatalf("unexpected run id %q", batch[0].Envelope.RunID)
	}
	if err := tail.Ack(ctx, batch[0].ID, batch[1].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	pending, err := client.XPending(ctx, stream, "tail").Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected nothing pending, got %d", pending.Count)
	}
}

func TestTailReplaysUnackedEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	client := startRedis(t)
	reg := baseRegistry(t)
	const stream = "researcher:replay"

	cfg := TailConfig{Stream: stream, Group: "tail", Name: "t1", From: "0", Block: 100 * time.Millisecond}
	first, err := NewTail(client, reg, cfg, nil)
	if err != nil {
		t.Fatalf("new tail: %v", err)
	}
	if err := first.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	pub, err := NewPublisher(client, reg, stream, 100)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	bus := core.NewBus(NewObserver(pub, "run-1", nil))
	bus.Log(ctx, "one")
	bus.Log(ctx, "two")

	// Read without acking, as a consumer whose handler failed would.
	batch, err := first.Next(ctx)
	if err != nil || len(batch) != 2 {
		t.Fatalf("first read = %d, %v", len(batch), err)
	}

	restarted, err := NewTail(client, reg, cfg, nil)
	if err != nil {
		t.Fatalf("new tail: %v", err)
	}
	replayed, err := restarted.Next(ctx)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(replayed) != 2 || replayed[0].ID != batch[0].ID || replayed[1].ID != batch[1].ID {
		t.Fatalf("expected the unacked entries again, got %+v", replayed)
	}

	time.Sleep(20 * time.Millisecond)
	other := cfg
	other.Name, other.ClaimIdle = "t2", 10*time.Millisecond
	claimer, err := NewTail(client, reg, other, nil)
	if err != nil {
		t.Fatalf("new tail: %v", err)
	}
	n, err := claimer.Reclaim(ctx)
	if err != nil || n != 2 {
		t.Fatalf("reclaim = %d, %v", n, err)
	}
	claimed, err := claimer.Next(ctx)
	if err != nil || len(claimed) != 2 {
		t.Fatalf("claimed read = %d, %v", len(claimed), err)
	}
	if err := claimer.Ack(ctx, claimed[0].ID, claimed[1].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if more, err := claimer.Next(ctx); err != nil || len(more) != 0 {
		t.Fatalf("expected nothing left, got %d, %v", len(more), err)
	}
	pending, err := client.XPending(ctx, stream, "tail").Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected nothing pending, got %d", pending.Count)
	}
}
