package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"riskgraph/internal/logging"
	"riskgraph/internal/wiring"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /orchestrate and the review API over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := wiring.Build(ctx, cfg, wiring.WithVersion(version))
	if err != nil {
		return err
	}
	defer app.Close()

	addr := cfg.ListenAddr
	if serveFlags.addr != "" {
		addr = serveFlags.addr
	}
	logging.New("serve").Info("listening", "addr", addr, "version", version)
	return app.API.Serve(ctx, addr)
}

// commandContext returns cmd's context, or Background when run outside
// Execute (as in tests calling RunE directly).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
