package graph

import (
	"fmt"
	"strings"
)

// Render generates a Mermaid flowchart of the stage dependencies. Stages with
// no prerequisites are drawn from a synthetic start node.
func (g *Graph[S]) Render() string {
	var b strings.Builder
	b.WriteString("graph LR\n")
	for _, s := range g.stages {
		deps := g.deps[s.Name()]
		if len(deps) == 0 {
			fmt.Fprintf(&b, "    start --> %s\n", sanitizeID(s.Name()))
			continue
		}
		for _, d := range deps {
			fmt.Fprintf(&b, "    %s --> %s\n", sanitizeID(d), sanitizeID(s.Name()))
		}
	}
	return b.String()
}

func sanitizeID(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}
