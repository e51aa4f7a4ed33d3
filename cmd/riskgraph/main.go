// riskgraph is the fraud decision service CLI: serve (HTTP), evaluate and
// fallback (one-shot), mcp (stdio MCP server), and the audit commands
// reviews, decisions, trace and graph.
//
// Usage:
//
//	riskgraph serve [--config=riskgraph.yaml]
//	riskgraph evaluate -f request.json
//	riskgraph fallback -f request.json
//	riskgraph mcp
//	riskgraph reviews [--status=OPEN|ALL] [-o table|markdown|json]
//	riskgraph reviews resolve <id> --decision=BLOCK --reviewer=<name>
//	riskgraph decisions [-n 20]
//	riskgraph trace <trace_id>
//	riskgraph graph
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
