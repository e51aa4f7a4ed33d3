// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, markdown reports and logs.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import (
	"strings"

	"riskgraph/pkg/types"
)

// --- Decisions ---

var decisions = map[types.Decision]string{
	types.DecisionApprove:   "Approve",
	types.DecisionChallenge: "Challenge",
	types.DecisionBlock:     "Block",
	types.DecisionEscalate:  "Escalate to human review",
}

// Decision returns the human-readable name for a decision code.
// Unknown codes are returned as-is.
func Decision(d types.Decision) string {
	if name, ok := decisions[d]; ok {
		return name
	}
	return string(d)
}

// Outcome describes an outcome, naming the held-back decision when the run
// escalated: "Escalate to human review (proposed Block)".
func Outcome(o types.Outcome) string {
	if o.Escalated && o.ProposedDecision != "" {
		return Decision(o.Decision) + " (proposed " + Decision(o.ProposedDecision) + ")"
	}
	return Decision(o.Decision)
}

// --- Signals ---

var signals = map[types.Signal]string{
	types.SignalAmountDeviation: "Amount Deviation",
	types.SignalUnusualHour:     "Unusual Hour",
	types.SignalUnusualCountry:  "Unusual Country",
	types.SignalUnknownDevice:   "Unknown Device",
}

// Signal returns the short title for a signal code.
// "unusual-hour" -> "Unusual Hour".
func Signal(s types.Signal) string {
	if name, ok := signals[s]; ok {
		return name
	}
	return string(s)
}

// Signals joins the titles of every member, or "none" for an empty set.
func Signals(s types.SignalSet) string {
	if len(s) == 0 {
		return "none"
	}
	names := make([]string, len(s))
	for i, sig := range s {
		names[i] = Signal(sig)
	}
	return strings.Join(names, ", ")
}

// --- Pipeline Stages ---

var stages = map[string]string{
	"context":              "Context",
	"behavior":             "Behavior",
	"rag":                  "Policy Retrieval",
	"web":                  "Threat Intel",
	"aggregation":          "Aggregation",
	"pro_fraud":            "Pro-Fraud",
	"pro_customer":         "Pro-Customer",
	"arbiter":              "Arbiter",
	"confidence_gate":      "Confidence Gate",
	"customer_explanation": "Customer Explanation",
	"audit_explanation":    "Audit Explanation",
	"fallback":             "Fallback",
}

// Stage returns the human-readable name for a stage code.
// "rag" -> "Policy Retrieval".
func Stage(code string) string {
	if name, ok := stages[code]; ok {
		return name
	}
	return code
}

// StageWithCode returns "Policy Retrieval (rag)" format for dual-audience contexts.
func StageWithCode(code string) string {
	name, ok := stages[code]
	if !ok || name == code {
		return code
	}
	return name + " (" + code + ")"
}

// StagePath converts the recorded stage path to a readable chain.
// [context behavior] -> "Context → Behavior"
func StagePath(path []types.StageRecord) string {
	names := make([]string, len(path))
	for i, s := range path {
		names[i] = Stage(s.Stage)
	}
	return strings.Join(names, " → ")
}

// --- Sources ---

// Source names the path that produced a decision.
func Source(s types.Source) string {
	switch s {
	case types.SourcePipeline:
		return "Full pipeline"
	case types.SourceFallback:
		return "Rule-based fallback"
	}
	return string(s)
}
