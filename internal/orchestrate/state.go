package orchestrate

import (
	"errors"
	"time"

	"riskgraph/internal/reasoning"
	"riskgraph/pkg/graph"
	"riskgraph/pkg/types"
)

// Stage names of the fixed fraud pipeline.
const (
	StageContext             = "context"
	StageBehavior            = "behavior"
	StageRAG                 = "rag"
	StageWeb                 = "web"
	StageAggregation         = "aggregation"
	StageProFraud            = "pro_fraud"
	StageProCustomer         = "pro_customer"
	StageArbiter             = "arbiter"
	StageConfidenceGate      = "confidence_gate"
	StageCustomerExplanation = "customer_explanation"
	StageAuditExplanation    = "audit_explanation"
)

// State field names. Transaction and customer are seeded inputs; every other
// field is a write-once slot owned by exactly one stage.
const (
	FieldTransaction         = "transaction"
	FieldCustomer            = "customer"
	FieldContextSignals      = "context_signals"
	FieldSignals             = "signals"
	FieldInternalEvidence    = "internal_evidence"
	FieldExternalEvidence    = "external_evidence"
	FieldAggregation         = "aggregation"
	FieldProFraud            = "pro_fraud"
	FieldProCustomer         = "pro_customer"
	FieldProposal            = "proposal"
	FieldOutcome             = "outcome"
	FieldExplanationCustomer = "explanation_customer"
	FieldExplanationAudit    = "explanation_audit"
)

// ErrIncompleteState is returned when a record is requested from a run that
// did not populate every field.
var ErrIncompleteState = errors.New("orchestrate: pipeline state incomplete")

// PipelineState is the typed state threaded through one run. Inputs are
// immutable; outputs are slots whose owner is fixed at construction.
type PipelineState struct {
	TraceID     string
	Transaction types.Transaction
	Customer    types.CustomerProfile

	ContextSignals      *graph.Slot[types.SignalSet]
	Signals             *graph.Slot[types.SignalSet]
	InternalEvidence    *graph.Slot[[]types.EvidenceItem]
	ExternalEvidence    *graph.Slot[[]types.EvidenceItem]
	Aggregation         *graph.Slot[string]
	ProFraud            *graph.Slot[string]
	ProCustomer         *graph.Slot[string]
	Proposal            *graph.Slot[types.Outcome]
	Outcome             *graph.Slot[types.Outcome]
	ExplanationCustomer *graph.Slot[string]
	ExplanationAudit    *graph.Slot[string]

	// calls counts the reasoning calls of this run; nil uses the shared backend.
	calls *reasoning.Counting
}

// NewPipelineState seeds a state for one run.
func NewPipelineState(traceID string, tx types.Transaction, customer types.CustomerProfile) *PipelineState {
	return &PipelineState{
		TraceID:             traceID,
		Transaction:         tx,
		Customer:            customer,
		ContextSignals:      graph.NewSlot[types.SignalSet](FieldContextSignals, StageContext),
		Signals:             graph.NewSlot[types.SignalSet](FieldSignals, StageBehavior),
		InternalEvidence:    graph.NewSlot[[]types.EvidenceItem](FieldInternalEvidence, StageRAG),
		ExternalEvidence:    graph.NewSlot[[]types.EvidenceItem](FieldExternalEvidence, StageWeb),
		Aggregation:         graph.NewSlot[string](FieldAggregation, StageAggregation),
		ProFraud:            graph.NewSlot[string](FieldProFraud, StageProFraud),
		ProCustomer:         graph.NewSlot[string](FieldProCustomer, StageProCustomer),
		Proposal:            graph.NewSlot[types.Outcome](FieldProposal, StageArbiter),
		Outcome:             graph.NewSlot[types.Outcome](FieldOutcome, StageConfidenceGate),
		ExplanationCustomer: graph.NewSlot[string](FieldExplanationCustomer, StageCustomerExplanation),
		ExplanationAudit:    graph.NewSlot[string](FieldExplanationAudit, StageAuditExplanation),
	}
}

// Complete reports whether every output slot has been written.
func (s *PipelineState) Complete() bool {
	return s.ContextSignals.Written() && s.Signals.Written() &&
		s.InternalEvidence.Written() && s.ExternalEvidence.Written() &&
		s.Aggregation.Written() && s.ProFraud.Written() && s.ProCustomer.Written() &&
		s.Proposal.Written() && s.Outcome.Written() &&
		s.ExplanationCustomer.Written() && s.ExplanationAudit.Written()
}

// Record builds the final decision record. It refuses partially populated
// states, so a record always describes a finished run.
func (s *PipelineState) Record(now time.Time) (*types.DecisionRecord, error) {
	if !s.Complete() {
		return nil, ErrIncompleteState
	}
	return &types.DecisionRecord{
		TraceID:          s.TraceID,
		TransactionID:    s.Transaction.ID,
		CustomerID:       s.Customer.ID,
		Source:           types.SourcePipeline,
		Outcome:          s.Outcome.Value(),
		Signals:          s.Signals.Value(),
		InternalEvidence: nonNil(s.InternalEvidence.Value()),
		ExternalEvidence: nonNil(s.ExternalEvidence.Value()),
		Debate: types.DebateArguments{
			ProFraud:    s.ProFraud.Value(),
			ProCustomer: s.ProCustomer.Value(),
		},
		ExplanationCustomer: s.ExplanationCustomer.Value(),
		ExplanationAudit:    s.ExplanationAudit.Value(),
		CreatedAt:           now,
	}, nil
}

// EvidenceRefs lists the references of all evidence retrieved so far.
func (s *PipelineState) EvidenceRefs() []string {
	refs := []string{}
	for _, it := range s.InternalEvidence.Value() {
		refs = append(refs, it.Ref())
	}
	for _, it := range s.ExternalEvidence.Value() {
		refs = append(refs, it.Ref())
	}
	return refs
}

func nonNil(items []types.EvidenceItem) []types.EvidenceItem {
	if items == nil {
		return []types.EvidenceItem{}
	}
	return items
}
