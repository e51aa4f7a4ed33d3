package format

import (
	"strings"

	"riskgraph/internal/display"
	"riskgraph/internal/store"
	"riskgraph/pkg/types"
)

// Reviews renders review cases, oldest first as given.
func Reviews(cases []*store.ReviewCase, m Mode) string {
	t := newTable(m, "ID", "Trace", "Transaction", "Proposed", "Confidence", "Status", "Human", "Created")
	for _, rc := range cases {
		human := string(rc.HumanDecision)
		if human == "" {
			human = "-"
		}
		t.row(rc.ID, rc.TraceID, rc.TransactionID, rc.ProposedDecision, Confidence(rc.Confidence), rc.Status, human, timestamp(rc.CreatedAt))
	}
	t.rightAlign(5)
	t.footer("", "", "", "", "", "", "TOTAL", len(cases))
	return t.String()
}

// Decisions renders decision records, one line each.
func Decisions(recs []*types.DecisionRecord, m Mode) string {
	t := newTable(m, "Trace", "Transaction", "Decision", "Confidence", "Source", "Signals", "Created")
	for _, r := range recs {
		decision := string(r.Outcome.Decision)
		if r.Outcome.Escalated {
			decision += " (" + string(r.Outcome.ProposedDecision) + ")"
		}
		t.row(r.TraceID, r.TransactionID, decision, Confidence(r.Outcome.Confidence), r.Source, signalList(r.Signals), timestamp(r.CreatedAt))
	}
	t.rightAlign(4)
	return t.String()
}

// Trace renders the stage path of one run followed by its evidence refs.
func Trace(tr *types.AuditTrace, m Mode) string {
	t := newTable(m, "#", "Stage", "Status", "Started", "Duration", "Error")
	for i, s := range tr.Path {
		errText := "-"
		if s.Error != "" {
			errText = Truncate(s.Error, 60)
		}
		t.row(i+1, s.Stage, s.Status, timestamp(s.StartedAt), Millis(s.FinishedAt.Sub(s.StartedAt)), errText)
	}
	t.rightAlign(1, 5)
	t.footer("", "", "", "TOTAL", Millis(tr.FinishedAt.Sub(tr.StartedAt)), "")

	var b strings.Builder
	b.WriteString("Trace:    " + tr.TraceID + "\n")
	b.WriteString("Source:   " + string(tr.Source) + "\n")
	b.WriteString("Signals:  " + signalList(tr.Signals) + "\n")
	if len(tr.EvidenceRefs) > 0 {
		b.WriteString("Evidence: " + strings.Join(tr.EvidenceRefs, ", ") + "\n")
	}
	if len(tr.Path) > 0 {
		b.WriteString("Path:     " + display.StagePath(tr.Path) + "\n")
	}
	if tr.Error != "" {
		b.WriteString("Error:    " + tr.Error + "\n")
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

func signalList(s types.SignalSet) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s.Strings(), ", ")
}
