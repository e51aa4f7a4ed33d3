package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"riskgraph/internal/format"
	"riskgraph/internal/wiring"
	"riskgraph/pkg/types"
)

var decisionsFlags struct {
	limit  int
	output string
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List recent decisions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDecisions,
}

var traceFlags struct {
	output string
}

var traceCmd = &cobra.Command{
	Use:   "trace <trace_id>",
	Short: "Show the audit trace of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrace,
}

func init() {
	decisionsCmd.Flags().IntVarP(&decisionsFlags.limit, "limit", "n", 20, "maximum number of decisions")
	decisionsCmd.Flags().StringVarP(&decisionsFlags.output, "output", "o", "table", "table, markdown or json")
	traceCmd.Flags().StringVarP(&traceFlags.output, "output", "o", "table", "table, markdown or json")
}

func runDecisions(cmd *cobra.Command, _ []string) error {
	st, err := wiring.OpenStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.ListDecisions(decisionsFlags.limit)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []*types.DecisionRecord{}
	}
	return render(cmd, decisionsFlags.output, recs, func(m format.Mode) string { return format.Decisions(recs, m) })
}

func runTrace(cmd *cobra.Command, args []string) error {
	st, err := wiring.OpenStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	tr, err := st.GetTrace(args[0])
	if err != nil {
		return err
	}
	if tr == nil {
		return fmt.Errorf("trace %s not found", args[0])
	}
	return render(cmd, traceFlags.output, tr, func(m format.Mode) string { return format.Trace(tr, m) })
}
