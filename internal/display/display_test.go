package display

import (
	"testing"

	"riskgraph/pkg/types"
)

func TestDecision(t *testing.T) {
	cases := []struct {
		code types.Decision
		want string
	}{
		{types.DecisionApprove, "Approve"},
		{types.DecisionChallenge, "Challenge"},
		{types.DecisionBlock, "Block"},
		{types.DecisionEscalate, "Escalate to human review"},
		{"HOLD", "HOLD"},
	}
	for _, tc := range cases {
		if got := Decision(tc.code); got != tc.want {
			t.Errorf("Decision(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestOutcome(t *testing.T) {
	escalated := types.Outcome{Decision: types.DecisionEscalate, ProposedDecision: types.DecisionBlock, Escalated: true}
	if got := Outcome(escalated); got != "Escalate to human review (proposed Block)" {
		t.Errorf("escalated = %q", got)
	}
	if got := Outcome(types.Outcome{Decision: types.DecisionApprove}); got != "Approve" {
		t.Errorf("approve = %q", got)
	}
}

func TestSignals(t *testing.T) {
	set := types.NewSignalSet(types.SignalUnknownDevice, types.SignalAmountDeviation)
	if got := Signals(set); got != "Amount Deviation, Unknown Device" {
		t.Errorf("Signals = %q", got)
	}
	if got := Signals(nil); got != "none" {
		t.Errorf("empty = %q", got)
	}
	if got := Signal("velocity"); got != "velocity" {
		t.Errorf("unknown = %q", got)
	}
}

func TestStage(t *testing.T) {
	cases := []struct {
		code, want, withCode string
	}{
		{"rag", "Policy Retrieval", "Policy Retrieval (rag)"},
		{"confidence_gate", "Confidence Gate", "Confidence Gate (confidence_gate)"},
		{"fallback", "Fallback", "Fallback (fallback)"},
		{"unknown", "unknown", "unknown"},
	}
	for _, tc := range cases {
		if got := Stage(tc.code); got != tc.want {
			t.Errorf("Stage(%q) = %q, want %q", tc.code, got, tc.want)
		}
		if got := StageWithCode(tc.code); got != tc.withCode {
			t.Errorf("StageWithCode(%q) = %q, want %q", tc.code, got, tc.withCode)
		}
	}
}

func TestStagePath(t *testing.T) {
	path := []types.StageRecord{{Stage: "context"}, {Stage: "behavior"}, {Stage: "web"}}
	want := "Context → Behavior → Threat Intel"
	if got := StagePath(path); got != want {
		t.Errorf("StagePath = %q, want %q", got, want)
	}
	if got := StagePath(nil); got != "" {
		t.Errorf("empty path = %q", got)
	}
}

func TestSource(t *testing.T) {
	if got := Source(types.SourceFallback); got != "Rule-based fallback" {
		t.Errorf("fallback = %q", got)
	}
	if got := Source(types.SourcePipeline); got != "Full pipeline" {
		t.Errorf("pipeline = %q", got)
	}
}
