package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func toolsCMD(cfgPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the configured research tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			// The catalog needs no backend; any completer satisfies the runner.
			idle := core.CompleterFunc(func(context.Context, []core.Message) (string, error) {
				return "", errors.New("no completions while listing tools")
			})
			runner, err := worker.NewRunner(worker.Deps{Config: cfg, Completer: idle, Logger: zap.NewNop()})
			if err != nil {
				return err
			}
			reg, err := runner.Catalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(reg.Cards())
			}
			fmt.Fprint(out, core.FormatTools(reg.Tools()))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tool cards with argument schemas as JSON")
	return cmd
}
