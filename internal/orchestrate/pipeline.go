package orchestrate

import (
	"riskgraph/pkg/graph"
)

// PipelineName identifies the fraud pipeline in logs and renders.
const PipelineName = "fraud-decision"

// pipelineDeps is the fixed topology:
//
//	context → behavior → {rag, web} → aggregation → {pro_fraud, pro_customer}
//	→ arbiter → confidence_gate → {customer_explanation, audit_explanation}
var pipelineDeps = map[string][]string{
	StageBehavior:            {StageContext},
	StageRAG:                 {StageBehavior},
	StageWeb:                 {StageBehavior},
	StageAggregation:         {StageRAG, StageWeb},
	StageProFraud:            {StageAggregation},
	StageProCustomer:         {StageAggregation},
	StageArbiter:             {StageProFraud, StageProCustomer},
	StageConfidenceGate:      {StageArbiter},
	StageCustomerExplanation: {StageConfidenceGate},
	StageAuditExplanation:    {StageConfidenceGate},
}

// Dependencies returns a copy of the pipeline topology, stage to prerequisites.
func Dependencies() map[string][]string {
	out := make(map[string][]string, len(pipelineDeps))
	for k, v := range pipelineDeps {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func buildGraph(stages *stageSet, opts ...graph.Option) (*graph.Graph[*PipelineState], error) {
	opts = append([]graph.Option{graph.WithInputs(FieldTransaction, FieldCustomer)}, opts...)
	return graph.New(PipelineName, stages.build(), Dependencies(), opts...)
}

// Topology renders the pipeline as a Mermaid flowchart without any
// collaborators attached.
func Topology() (string, error) {
	g, err := buildGraph(&stageSet{})
	if err != nil {
		return "", err
	}
	return g.Render(), nil
}
