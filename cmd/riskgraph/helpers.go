package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"riskgraph/internal/api"
	"riskgraph/internal/format"
)

// readRequest decodes an /orchestrate body from path, or stdin for "-".
func readRequest(path string, stdin io.Reader) (api.OrchestrateRequest, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return api.OrchestrateRequest{}, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}
	return api.DecodeRequest(r)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// render prints v as JSON for output "json", otherwise the table produced by
// table in the requested mode.
func render(cmd *cobra.Command, output string, v any, table func(format.Mode) string) error {
	if strings.EqualFold(output, "json") {
		return writeJSON(cmd.OutOrStdout(), v)
	}
	mode, err := format.ParseMode(output)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), table(mode))
	return nil
}
