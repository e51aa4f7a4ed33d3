package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"riskgraph/pkg/types"
)

var (
	// ErrMalformedRequest is returned when a request body is not valid JSON
	// for OrchestrateRequest.
	ErrMalformedRequest = errors.New("malformed request body")
	// ErrMissingInput is returned when the transaction or the customer is
	// absent.
	ErrMissingInput = errors.New("missing transaction or customer data")
)

// OrchestrateRequest is the body of POST /orchestrate. Both objects are
// required.
type OrchestrateRequest struct {
	Transaction *types.Transaction     `json:"transaction"`
	Customer    *types.CustomerProfile `json:"customer"`
}

// DecodeRequest reads and validates one request body. Errors wrap
// ErrMalformedRequest or ErrMissingInput.
func DecodeRequest(r io.Reader) (OrchestrateRequest, error) {
	var req OrchestrateRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if req.Transaction == nil || req.Customer == nil {
		return req, ErrMissingInput
	}
	return req, nil
}

// OrchestrateResponse is the decision returned to callers, from either the
// pipeline or the fallback path.
type OrchestrateResponse struct {
	TraceID             string                   `json:"trace_id"`
	Decision            types.Decision           `json:"decision"`
	Confidence          float64                  `json:"confidence"`
	ProposedDecision    types.Decision           `json:"proposed_decision,omitempty"`
	Source              types.Source             `json:"source"`
	Signals             []string                 `json:"signals"`
	CitationsInternal   []types.InternalCitation `json:"citations_internal"`
	CitationsExternal   []types.ExternalCitation `json:"citations_external"`
	ExplanationCustomer string                   `json:"explanation_customer"`
	ExplanationAudit    string                   `json:"explanation_audit"`
}

// ErrorResponse is the body of every non-2xx reply. TraceID is set when a
// run was started.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewResponse converts a finished record to its wire shape.
func NewResponse(rec *types.DecisionRecord) OrchestrateResponse {
	return OrchestrateResponse{
		TraceID:             rec.TraceID,
		Decision:            rec.Outcome.Decision,
		Confidence:          rec.Outcome.Confidence,
		ProposedDecision:    rec.Outcome.ProposedDecision,
		Source:              rec.Source,
		Signals:             rec.Signals.Strings(),
		CitationsInternal:   types.InternalCitations(rec.InternalEvidence),
		CitationsExternal:   types.ExternalCitations(rec.ExternalEvidence),
		ExplanationCustomer: rec.ExplanationCustomer,
		ExplanationAudit:    rec.ExplanationAudit,
	}
}
