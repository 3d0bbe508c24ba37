package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "researcher",
		Short:         "Iterative web research agent",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.yaml)")

	root.AddCommand(
		runCMD(&cfgPath),
		serveCMD(&cfgPath),
		migrateCMD(&cfgPath),
		toolsCMD(&cfgPath),
		tokenCMD(&cfgPath),
		eventsCMD(&cfgPath),
	)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
