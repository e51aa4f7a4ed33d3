package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"riskgraph/internal/format"
	"riskgraph/internal/store"
	"riskgraph/internal/wiring"
	"riskgraph/pkg/types"
)

var reviewsFlags struct {
	status string
	output string
}

var resolveFlags struct {
	decision string
	reviewer string
	notes    string
}

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "List human review cases",
	Args:  cobra.NoArgs,
	RunE:  runReviews,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Record the human decision for a review case",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	f := reviewsCmd.Flags()
	f.StringVar(&reviewsFlags.status, "status", string(store.ReviewOpen), "OPEN, IN_PROGRESS, RESOLVED, CLOSED or ALL")
	f.StringVarP(&reviewsFlags.output, "output", "o", "table", "table, markdown or json")

	rf := resolveCmd.Flags()
	rf.StringVar(&resolveFlags.decision, "decision", "", "APPROVE, CHALLENGE or BLOCK (required)")
	rf.StringVar(&resolveFlags.reviewer, "reviewer", "", "reviewer name")
	rf.StringVar(&resolveFlags.notes, "notes", "", "reviewer notes")
	_ = resolveCmd.MarkFlagRequired("decision")

	reviewsCmd.AddCommand(resolveCmd)
}

func runReviews(cmd *cobra.Command, _ []string) error {
	st, err := wiring.OpenStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	status := store.ReviewStatus(strings.ToUpper(reviewsFlags.status))
	if status == "ALL" {
		status = ""
	}
	cases, err := st.ListReviews(status)
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}
	if cases == nil {
		cases = []*store.ReviewCase{}
	}
	return render(cmd, reviewsFlags.output, cases, func(m format.Mode) string { return format.Reviews(cases, m) })
}

func runResolve(cmd *cobra.Command, args []string) error {
	st, err := wiring.OpenStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rc, err := st.ResolveReview(args[0], store.Resolution{
		Decision: types.Decision(strings.ToUpper(resolveFlags.decision)),
		Reviewer: resolveFlags.reviewer,
		Notes:    resolveFlags.notes,
	})
	if err != nil {
		return fmt.Errorf("resolve review %s: %w", args[0], err)
	}
	return writeJSON(cmd.OutOrStdout(), rc)
}
