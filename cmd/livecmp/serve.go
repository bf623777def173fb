package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm/livecmp/lib/config"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo components",
		Long: `Serve the demo application: counter, todos, signup, login, a lazy
dashboard and a device panel that issues native calls.

Configuration comes from an optional YAML file and LIVE_* environment
variables (LIVE_ADDR, LIVE_SECRET_KEY, LIVE_SESSION_DRIVER, LIVE_NATS_URL, ...).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := config.NewLogger(cfg.LogLevel)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newServer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			success("Serving on %s", cfg.Addr)
			info("Endpoint %s, sessions %s, debug %t", cfg.Endpoint, cfg.Session.Driver, cfg.Debug)
			return s.run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Show diagnostic overlays")
	return cmd
}
