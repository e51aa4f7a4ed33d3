package decision

import (
	"fmt"
	"strings"

	"riskgraph/internal/signal"
	"riskgraph/pkg/types"
)

// Fixed confidences of the fallback table.
const (
	FallbackBlockConfidence     = 0.8
	FallbackChallengeConfidence = 0.6
	FallbackApproveConfidence   = 0.9
)

// Fallback maps a signal set to a decision without any model involvement:
// three or more signals block, one or more challenge, none approve.
func Fallback(signals types.SignalSet) types.Outcome {
	var o types.Outcome
	switch n := len(signals); {
	case n >= 3:
		o = types.Outcome{Decision: types.DecisionBlock, Confidence: FallbackBlockConfidence}
	case n >= 1:
		o = types.Outcome{Decision: types.DecisionChallenge, Confidence: FallbackChallengeConfidence}
	default:
		o = types.Outcome{Decision: types.DecisionApprove, Confidence: FallbackApproveConfidence}
	}
	if len(signals) == 0 {
		o.Reasoning = "fallback: no risk signals detected"
	} else {
		o.Reasoning = fmt.Sprintf("fallback: %d risk signal(s): %s", len(signals), strings.Join(signals.Strings(), ", "))
	}
	return o
}

// Controller produces a complete fallback decision from the raw inputs.
type Controller struct {
	Detector signal.Detector
}

// Decide detects signals and applies the fallback table. It performs no I/O.
func (c Controller) Decide(tx types.Transaction, customer types.CustomerProfile) (types.SignalSet, types.Outcome) {
	signals := c.Detector.Detect(tx, customer)
	return signals, Fallback(signals)
}

// Record builds the full fallback decision record for one request.
func (c Controller) Record(traceID string, tx types.Transaction, customer types.CustomerProfile) types.DecisionRecord {
	signals, outcome := c.Decide(tx, customer)
	return types.DecisionRecord{
		TraceID:             traceID,
		TransactionID:       tx.ID,
		CustomerID:          customer.ID,
		Source:              types.SourceFallback,
		Outcome:             outcome,
		Signals:             signals,
		InternalEvidence:    []types.EvidenceItem{},
		ExternalEvidence:    []types.EvidenceItem{},
		ExplanationCustomer: CustomerNotice(outcome.Decision),
		ExplanationAudit:    outcome.Reasoning,
	}
}

// CustomerNotice is the fixed customer-facing text for a decision, used when
// no model-written explanation is available.
func CustomerNotice(d types.Decision) string {
	switch d {
	case types.DecisionApprove:
		return "Your transaction was approved."
	case types.DecisionChallenge:
		return "Your transaction needs an additional verification step for your security."
	case types.DecisionBlock:
		return "For your security, this transaction was blocked as a precaution."
	case types.DecisionEscalate:
		return "We are reviewing your transaction. Please wait a few moments."
	}
	return ""
}
