package main

import (
	"github.com/spf13/cobra"

	"riskgraph/internal/decision"
	"riskgraph/internal/gateway"
	"riskgraph/internal/signal"
	"riskgraph/internal/wiring"
)

var fallbackFlags struct {
	file    string
	noStore bool
}

var fallbackCmd = &cobra.Command{
	Use:   "fallback",
	Short: "Decide with the deterministic signal rules only",
	Long: `Runs only signal detection and the fallback table. No model, knowledge
base or search calls are made, and no AWS credentials are needed.`,
	RunE: runFallback,
}

func init() {
	f := fallbackCmd.Flags()
	f.StringVarP(&fallbackFlags.file, "file", "f", "", "request JSON file, or - for stdin (required)")
	f.BoolVar(&fallbackFlags.noStore, "no-store", false, "do not record the decision")
	_ = fallbackCmd.MarkFlagRequired("file")
}

func runFallback(cmd *cobra.Command, _ []string) error {
	req, err := readRequest(fallbackFlags.file, cmd.InOrStdin())
	if err != nil {
		return err
	}
	opts := []gateway.Option{}
	if !fallbackFlags.noStore {
		st, err := wiring.OpenStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, gateway.WithStore(st))
	}
	controller := decision.Controller{Detector: signal.NewDetector(cfg.Pipeline.AmountMultiplier)}
	resp := gateway.New(nil, controller, opts...).Fallback("", *req.Transaction, *req.Customer)
	return writeJSON(cmd.OutOrStdout(), resp)
}
