package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"riskgraph/internal/orchestrate"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the pipeline topology as a Mermaid flowchart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := orchestrate.Topology()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}
