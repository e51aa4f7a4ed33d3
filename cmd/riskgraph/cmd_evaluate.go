package main

import (
	"github.com/spf13/cobra"

	"riskgraph/internal/wiring"
)

var evaluateFlags struct {
	file string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one request through the pipeline, falling back on failure",
	Long: `Reads a JSON body of the form {"transaction": {...}, "customer": {...}}
and prints the decision. When gateway.primary_url is configured the request
is sent to that server; otherwise the pipeline runs in-process. Either way an
unavailable pipeline yields the deterministic fallback decision.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateFlags.file, "file", "f", "", "request JSON file, or - for stdin (required)")
	_ = evaluateCmd.MarkFlagRequired("file")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	req, err := readRequest(evaluateFlags.file, cmd.InOrStdin())
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	app, err := wiring.Build(ctx, cfg, wiring.WithVersion(version))
	if err != nil {
		return err
	}
	defer app.Close()

	resp, err := app.Gateway.Evaluate(ctx, *req.Transaction, *req.Customer)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}
