package orchestrate

import (
	"context"
	"fmt"
	"strings"

	"riskgraph/internal/decision"
	"riskgraph/internal/reasoning"
	"riskgraph/internal/signal"
	"riskgraph/pkg/graph"
	"riskgraph/pkg/types"
)

// PolicyRetriever is the internal evidence source. Implementations absorb
// their own failures and return an empty list instead.
type PolicyRetriever interface {
	Retrieve(ctx context.Context, query string, maxResults int) []types.EvidenceItem
}

// ThreatSearcher is the external evidence source, with the same contract.
type ThreatSearcher interface {
	Search(ctx context.Context, query string, maxResults int) []types.EvidenceItem
}

type stage = graph.Stage[*PipelineState]

// stageSet carries the collaborators every stage closes over. It holds no
// per-run data, so one set serves all concurrent runs.
type stageSet struct {
	detector   signal.Detector
	policies   PolicyRetriever
	threats    ThreatSearcher
	backend    reasoning.Backend
	gate       decision.Gate
	prompts    *Prompts
	maxResults int
}

func (s *stageSet) build() []stage {
	return []stage{
		s.fn(StageContext, nil, FieldContextSignals, s.contextSignals),
		s.fn(StageBehavior, []string{FieldContextSignals}, FieldSignals, s.behavior),
		s.fn(StageRAG, []string{FieldSignals}, FieldInternalEvidence, s.rag),
		s.fn(StageWeb, []string{FieldSignals}, FieldExternalEvidence, s.web),
		s.fn(StageAggregation, []string{FieldSignals, FieldInternalEvidence, FieldExternalEvidence}, FieldAggregation, s.aggregation),
		s.fn(StageProFraud, []string{FieldAggregation}, FieldProFraud, s.argue(StageProFraud, func(st *PipelineState) *graph.Slot[string] { return st.ProFraud })),
		s.fn(StageProCustomer, []string{FieldAggregation}, FieldProCustomer, s.argue(StageProCustomer, func(st *PipelineState) *graph.Slot[string] { return st.ProCustomer })),
		s.fn(StageArbiter, []string{FieldAggregation, FieldProFraud, FieldProCustomer}, FieldProposal, s.arbiter),
		s.fn(StageConfidenceGate, []string{FieldProposal}, FieldOutcome, s.confidenceGate),
		s.fn(StageCustomerExplanation, []string{FieldOutcome, FieldSignals}, FieldExplanationCustomer, s.customerExplanation),
		s.fn(StageAuditExplanation, []string{FieldOutcome, FieldAggregation, FieldInternalEvidence, FieldExternalEvidence}, FieldExplanationAudit, s.auditExplanation),
	}
}

// fn declares a stage; transaction and customer are readable by every stage.
func (s *stageSet) fn(name string, reads []string, write string, run func(context.Context, *PipelineState) error) stage {
	return graph.StageFunc[*PipelineState]{
		StageName: name,
		In:        append([]string{FieldTransaction, FieldCustomer}, reads...),
		Out:       []string{write},
		Fn:        traced(name, run),
	}
}

func (s *stageSet) contextSignals(_ context.Context, st *PipelineState) error {
	return st.ContextSignals.Set(StageContext, s.detector.Context(st.Transaction, st.Customer))
}

func (s *stageSet) behavior(_ context.Context, st *PipelineState) error {
	base, err := st.ContextSignals.Get()
	if err != nil {
		return err
	}
	return st.Signals.Set(StageBehavior, s.detector.Behavior(st.Transaction, st.Customer, base))
}

func (s *stageSet) rag(ctx context.Context, st *PipelineState) error {
	signals, err := st.Signals.Get()
	if err != nil {
		return err
	}
	items := s.policies.Retrieve(ctx, policyQuery(signals), s.maxResults)
	return st.InternalEvidence.Set(StageRAG, nonNil(items))
}

func (s *stageSet) web(ctx context.Context, st *PipelineState) error {
	signals, err := st.Signals.Get()
	if err != nil {
		return err
	}
	items := s.threats.Search(ctx, threatQuery(st.Transaction, signals), s.maxResults)
	return st.ExternalEvidence.Set(StageWeb, nonNil(items))
}

func (s *stageSet) aggregation(ctx context.Context, st *PipelineState) error {
	data := s.data(st)
	data.Internal = st.InternalEvidence.Value()
	data.External = st.ExternalEvidence.Value()
	text, err := s.complete(ctx, st, StageAggregation, data)
	if err != nil {
		return err
	}
	return st.Aggregation.Set(StageAggregation, text)
}

func (s *stageSet) argue(name string, slot func(*PipelineState) *graph.Slot[string]) func(context.Context, *PipelineState) error {
	return func(ctx context.Context, st *PipelineState) error {
		data := s.data(st)
		data.Aggregation = st.Aggregation.Value()
		text, err := s.complete(ctx, st, name, data)
		if err != nil {
			return err
		}
		return slot(st).Set(name, text)
	}
}

func (s *stageSet) arbiter(ctx context.Context, st *PipelineState) error {
	data := s.data(st)
	data.Aggregation = st.Aggregation.Value()
	data.ProFraud = st.ProFraud.Value()
	data.ProCustomer = st.ProCustomer.Value()
	prompt, err := s.prompts.Render(StageArbiter, data)
	if err != nil {
		return err
	}
	var v reasoning.Verdict
	if err := s.reasoner(st).CompleteStructured(ctx, prompt, reasoning.DecisionSchema, &v); err != nil {
		return err
	}
	return st.Proposal.Set(StageArbiter, types.Outcome{
		Decision:   types.Decision(v.Decision),
		Confidence: v.Confidence,
		Reasoning:  v.Reasoning,
	})
}

func (s *stageSet) confidenceGate(_ context.Context, st *PipelineState) error {
	proposal, err := st.Proposal.Get()
	if err != nil {
		return err
	}
	return st.Outcome.Set(StageConfidenceGate, s.gate.Apply(proposal))
}

func (s *stageSet) customerExplanation(ctx context.Context, st *PipelineState) error {
	data := s.data(st)
	data.Outcome = st.Outcome.Value()
	text, err := s.complete(ctx, st, StageCustomerExplanation, data)
	if err != nil {
		return err
	}
	return st.ExplanationCustomer.Set(StageCustomerExplanation, text)
}

func (s *stageSet) auditExplanation(ctx context.Context, st *PipelineState) error {
	data := s.data(st)
	data.Outcome = st.Outcome.Value()
	data.Aggregation = st.Aggregation.Value()
	data.Evidence = st.EvidenceRefs()
	text, err := s.complete(ctx, st, StageAuditExplanation, data)
	if err != nil {
		return err
	}
	return st.ExplanationAudit.Set(StageAuditExplanation, text)
}

func (s *stageSet) data(st *PipelineState) promptData {
	return promptData{
		Transaction: st.Transaction,
		Customer:    st.Customer,
		Signals:     st.Signals.Value().Descriptions(),
	}
}

func (s *stageSet) complete(ctx context.Context, st *PipelineState, stage string, data promptData) (string, error) {
	prompt, err := s.prompts.Render(stage, data)
	if err != nil {
		return "", err
	}
	return s.reasoner(st).Complete(ctx, prompt)
}

func (s *stageSet) reasoner(st *PipelineState) reasoning.Backend {
	if st.calls != nil {
		return st.calls
	}
	return s.backend
}

func policyQuery(signals types.SignalSet) string {
	if len(signals) == 0 {
		return "Fraud policies for transactions without risk signals"
	}
	return "Fraud policies for the following signals: " + strings.Join(signals.Descriptions(), ", ")
}

func threatQuery(tx types.Transaction, signals types.SignalSet) string {
	q := fmt.Sprintf("recent fraud alerts merchant %s", tx.MerchantID)
	if tx.Country != "" {
		q += " " + tx.Country
	}
	if len(signals) > 0 {
		q += " " + strings.Join(signals.Strings(), " ")
	}
	return q
}
