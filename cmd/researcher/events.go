package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/mohammad-safakhou/researcher/internal/queue/streams"
	"github.com/mohammad-safakhou/researcher/internal/runtime"
	"github.com/spf13/cobra"
)

func eventsCMD(cfgPath *string) *cobra.Command {
	var (
		group, name, from, runID string
		claimIdle                time.Duration
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail run lifecycle events from the Redis stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := runtime.SignalContext(cmd.Context(), nil)
			defer stop()
			a, err := loadApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			stream := a.cfg.Events.RedisStream
			if stream == "" || !a.cfg.Storage.Redis.Enabled() {
				return errors.New("events.redis_stream and storage.redis must be configured")
			}
			client, err := newRedis(ctx, a.cfg.Storage.Redis)
			if err != nil {
				return err
			}
			defer client.Close()

			reg := streams.NewSchemaRegistry()
			if err := streams.RegisterBaseSchemas(reg); err != nil {
				return err
			}
			if name == "" {
				name, _ = os.Hostname()
			}
			tail, err := streams.NewTail(client, reg, streams.TailConfig{
				Stream:    stream,
				Group:     group,
				Name:      name,
				From:      from,
				RunID:     runID,
				ClaimIdle: claimIdle,
			}, a.logger)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return tail.Follow(ctx, func(d streams.Delivery) error {
				return enc.Encode(d.Envelope)
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "researcher-tail", "consumer group")
	cmd.Flags().StringVar(&name, "name", "", "consumer name (default hostname)")
	cmd.Flags().StringVar(&runID, "run", "", "only print events of this run id")
	cmd.Flags().StringVar(&from, "from", "$", "start position for a new group (0 for the whole stream)")
	cmd.Flags().DurationVar(&claimIdle, "claim-idle", 0, "take over entries other consumers left pending this long (0 disables)")
	return cmd
}
