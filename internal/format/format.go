// Package format renders decisions, audit traces and review cases as
// terminal or Markdown tables.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps "table"/"ascii" and "markdown"/"md" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "table", "ascii":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	}
	return ASCII, fmt.Errorf("format: unknown mode %q", s)
}

type tableWriter struct {
	w    table.Writer
	mode Mode
}

func newTable(m Mode, header ...any) *tableWriter {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	w.AppendHeader(header)
	return &tableWriter{w: w, mode: m}
}

func (t *tableWriter) row(vals ...any) { t.w.AppendRow(vals) }

func (t *tableWriter) footer(vals ...any) { t.w.AppendFooter(vals) }

// rightAlign right-aligns the given 1-based columns.
func (t *tableWriter) rightAlign(cols ...int) {
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for _, c := range cols {
		cfgs = append(cfgs, table.ColumnConfig{Number: c, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	t.w.SetColumnConfigs(cfgs)
}

func (t *tableWriter) String() string {
	if t.mode == Markdown {
		return t.w.RenderMarkdown()
	}
	return t.w.Render()
}

// Confidence renders a score in [0,1] with two decimals.
func Confidence(v float64) string { return fmt.Sprintf("%.2f", v) }

// Millis renders a stage duration in whole milliseconds.
func Millis(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// Truncate shortens s to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
