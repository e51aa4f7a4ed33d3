package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"riskgraph/internal/config"
	"riskgraph/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// cfg is loaded once per invocation by the root pre-run hook.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "riskgraph",
	Short: "Explainable fraud decisions for card transactions",
	Long: "riskgraph evaluates a transaction against the customer's usual behaviour,\n" +
		"internal fraud policy and external threat intelligence, debates the case\n" +
		"with a reasoning model and escalates low-confidence decisions to a human.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "YAML config file (environment variables override it)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "text or json (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(fallbackCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(reviewsCmd)
	rootCmd.AddCommand(decisionsCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.Version = version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(rootFlags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if rootFlags.logLevel != "" {
		loaded.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		loaded.Log.Format = rootFlags.logFormat
	}
	level, err := logging.ParseLevel(loaded.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, loaded.Log.Format, cmd.ErrOrStderr())
	cfg = loaded
	return nil
}
