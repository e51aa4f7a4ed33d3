// Package decision holds the two deterministic decision points of the
// pipeline: the confidence gate that routes low-confidence outcomes to a
// human, and the fallback controller used when the reasoning path is
// unreachable. It depends only on the signal detector and the data model.
package decision

import "riskgraph/pkg/types"

// DefaultThreshold is the confidence below which outcomes escalate.
const DefaultThreshold = 0.6

// Gate forces human escalation below Threshold. It is the only place that
// produces ESCALATE_TO_HUMAN.
type Gate struct {
	Threshold float64
}

// NewGate returns a Gate for any threshold in [0, 1]; 0 never escalates.
// A threshold outside that range selects DefaultThreshold.
func NewGate(threshold float64) Gate {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return Gate{Threshold: threshold}
}

// Apply returns o unchanged when its confidence meets the threshold. Otherwise
// the decision becomes ESCALATE_TO_HUMAN; confidence and reasoning are kept
// and the arbiter's decision is preserved in ProposedDecision.
func (g Gate) Apply(o types.Outcome) types.Outcome {
	if o.Confidence >= g.Threshold {
		return o
	}
	out := o
	out.ProposedDecision = o.Decision
	out.Decision = types.DecisionEscalate
	out.Escalated = true
	return out
}
