package types

import "time"

// Decision is the acted-upon outcome of an evaluation.
type Decision string

const (
	DecisionApprove   Decision = "APPROVE"
	DecisionChallenge Decision = "CHALLENGE"
	DecisionBlock     Decision = "BLOCK"
	DecisionEscalate  Decision = "ESCALATE_TO_HUMAN"
)

// Valid reports whether d is one of the four known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionChallenge, DecisionBlock, DecisionEscalate:
		return true
	}
	return false
}

// Outcome is a decision with its confidence and reasoning. When the
// confidence gate escalates, ProposedDecision keeps what the arbiter asked for.
type Outcome struct {
	Decision         Decision `json:"decision"`
	Confidence       float64  `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	ProposedDecision Decision `json:"proposed_decision,omitempty"`
	Escalated        bool     `json:"escalated"`
}

// DebateArguments are the two opposing readings of the same evidence summary.
type DebateArguments struct {
	ProFraud    string `json:"pro_fraud"`
	ProCustomer string `json:"pro_customer"`
}

// Source tells which path produced a decision record.
type Source string

const (
	SourcePipeline Source = "pipeline"
	SourceFallback Source = "fallback"
)

// DecisionRecord is the complete, final result of one evaluation. It is only
// ever built from a fully populated run or from the fallback path.
type DecisionRecord struct {
	TraceID             string          `json:"trace_id"`
	TransactionID       string          `json:"transaction_id"`
	CustomerID          string          `json:"customer_id"`
	Source              Source          `json:"source"`
	Outcome             Outcome         `json:"outcome"`
	Signals             SignalSet       `json:"signals"`
	InternalEvidence    []EvidenceItem  `json:"internal_evidence"`
	ExternalEvidence    []EvidenceItem  `json:"external_evidence"`
	Debate              DebateArguments `json:"debate"`
	ExplanationCustomer string          `json:"explanation_customer"`
	ExplanationAudit    string          `json:"explanation_audit"`
	CreatedAt           time.Time       `json:"created_at"`
}
