package main

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/internal/runtime"
	"github.com/mohammad-safakhou/researcher/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runCMD(cfgPath *string) *cobra.Command {
	var topics []string
	var objectivesFile string
	var iterations int
	var role string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one research session in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := runtime.SignalContext(cmd.Context(), nil)
			defer stop()
			a, err := loadApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			objectives := config.ObjectivesFromTopics(topics)
			if objectivesFile != "" {
				fromFile, err := config.LoadObjectivesFile(objectivesFile)
				if err != nil {
					return err
				}
				objectives = append(objectives, fromFile...)
			}

			sink := func(token string) { a.logger.Debug("token", zap.String("text", token)) }
			deps, err := a.deps(ctx, sink)
			if err != nil {
				return err
			}
			runner, err := worker.NewRunner(deps)
			if err != nil {
				return err
			}
			run, err := runner.Prepare(worker.Request{
				Role:       role,
				Iterations: iterations,
				Objectives: toCore(objectives),
				Trigger:    worker.TriggerManual,
			})
			if err != nil {
				return err
			}
			if err := run.Execute(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), run.State.Narrative())
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&topics, "objective", nil, "research topic (repeatable)")
	cmd.Flags().StringVar(&objectivesFile, "objectives-file", "", "YAML file listing {topic, expertise} objectives")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "iterations to run (default from config)")
	cmd.Flags().StringVar(&role, "role", "", "agent role (default from config)")
	return cmd
}

func toCore(in []config.Objective) []core.Objective {
	out := make([]core.Objective, 0, len(in))
	for _, o := range in {
		out = append(out, core.Objective{Topic: o.Topic, Expertise: o.Expertise})
	}
	return out
}
