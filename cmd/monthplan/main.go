package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "monthplan/internal/log"
)

var Version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "monthplan",
		Short:         "Month-view task planner with drag to select, move and resize",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "./monthplan.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides config): debug, info, warn, error")

	serve := serveCmd(opts)
	root.AddCommand(serve)
	root.AddCommand(tuiCmd(opts))
	root.AddCommand(exportCmd(opts))
	root.AddCommand(importCmd(opts))
	root.AddCommand(snapshotCmd(opts))

	// Bare "monthplan" serves.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func logStart(cmd string, opts *rootOptions) {
	appLog.Info("monthplan starting",
		"version", Version,
		"command", cmd,
		"config_path", opts.configPath,
		"listen", opts.cfg.Listen,
		"timezone", opts.cfg.Timezone,
		"week_start", opts.cfg.WeekStart,
		"storage", opts.cfg.Storage.Driver,
		"imports", len(opts.cfg.Imports),
	)
}
