package main

import (
	"context"

	"github.com/mohammad-safakhou/researcher/internal/runtime"
	"github.com/mohammad-safakhou/researcher/internal/server"
	"github.com/mohammad-safakhou/researcher/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the optional scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := runtime.SignalContext(cmd.Context(), nil)
			defer stop()
			a, err := loadApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			secret, err := runtime.LoadJWTSecret(a.cfg)
			if err != nil {
				return err
			}
			deps, err := a.deps(ctx, nil)
			if err != nil {
				return err
			}
			runner, err := worker.NewRunner(deps)
			if err != nil {
				return err
			}
			launcher := worker.NewLauncher(ctx, runner)
			defer launcher.Wait()

			opts := server.Options{
				Launcher:  launcher,
				Catalog:   runner.Catalog,
				Metrics:   a.telemetry.MetricsHandler(),
				JWTSecret: secret,
				Logger:    a.logger,
			}
			if a.store != nil {
				opts.Journal = a.store
			}
			srv, err := server.New(opts)
			if err != nil {
				return err
			}

			if cronSpec := a.cfg.Schedule.Cron; cronSpec != "" {
				var lock server.Locker
				if a.redis != nil {
					lock = a.redis
				}
				sched, err := server.NewScheduler(cronSpec, launcher, lock, a.cfg.Schedule.LockTTL, a.logger)
				if err != nil {
					return err
				}
				go sched.Start(ctx)
				a.logger.Info("scheduler started", zap.String("cron", cronSpec))
			}

			if addr == "" {
				addr = a.cfg.Server.Address()
			}
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default WEB_HOST:WEB_PORT)")
	return cmd
}
