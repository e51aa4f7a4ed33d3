package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"riskgraph/internal/api"
	"riskgraph/internal/gateway"
	"riskgraph/internal/logging"
	"riskgraph/internal/store"
	"riskgraph/pkg/types"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server and exposes fraud decisions as tools.
type Server struct {
	MCPServer *sdkmcp.Server

	gateway *gateway.Gateway
	store   store.Store
}

// NewServer creates an MCP server backed by gw. st may be nil, in which case
// the review tools report that no store is configured.
func NewServer(gw *gateway.Gateway, st store.Store, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{gateway: gw, store: st}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "riskgraph", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves the MCP protocol over stdio until ctx is canceled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "evaluate_transaction",
		Description: "Run the full fraud decision pipeline for one transaction. Falls back to the deterministic rules when the pipeline is unavailable.",
	}, s.handleEvaluate)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "fallback_decision",
		Description: "Decide using the deterministic signal rules only. Makes no model or search calls.",
	}, s.handleFallback)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_reviews",
		Description: "List human review cases. Defaults to OPEN cases.",
	}, s.handleListReviews)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "resolve_review",
		Description: "Record the human decision for an escalated case.",
	}, s.handleResolveReview)
}

// --- Tool input/output types ---

type evaluateInput struct {
	RequestJSON string `json:"request_json" jsonschema:"JSON object with transaction and customer fields, as accepted by POST /orchestrate"`
}

type decisionOutput struct {
	TraceID             string   `json:"trace_id"`
	Decision            string   `json:"decision"`
	Confidence          float64  `json:"confidence"`
	ProposedDecision    string   `json:"proposed_decision,omitempty"`
	Source              string   `json:"source"`
	Signals             []string `json:"signals"`
	PolicyIDs           []string `json:"policy_ids"`
	ExternalURLs        []string `json:"external_urls"`
	ExplanationCustomer string   `json:"explanation_customer"`
	ExplanationAudit    string   `json:"explanation_audit"`
}

type listReviewsInput struct {
	Status string `json:"status,omitempty" jsonschema:"OPEN, IN_PROGRESS, RESOLVED, CLOSED or ALL (default OPEN)"`
}

type reviewSummary struct {
	ID               string  `json:"id"`
	TraceID          string  `json:"trace_id"`
	TransactionID    string  `json:"transaction_id"`
	ProposedDecision string  `json:"proposed_decision"`
	Confidence       float64 `json:"confidence"`
	Status           string  `json:"status"`
	HumanDecision    string  `json:"human_decision,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

type listReviewsOutput struct {
	Reviews []reviewSummary `json:"reviews"`
	Count   int             `json:"count"`
}

type resolveReviewInput struct {
	ID       string `json:"id" jsonschema:"review case ID"`
	Decision string `json:"decision" jsonschema:"APPROVE, CHALLENGE or BLOCK"`
	Reviewer string `json:"reviewer,omitempty" jsonschema:"who resolved the case"`
	Notes    string `json:"notes,omitempty" jsonschema:"free-form reviewer notes"`
}

// --- Tool handlers ---

func (s *Server) handleEvaluate(ctx context.Context, _ *sdkmcp.CallToolRequest, input evaluateInput) (*sdkmcp.CallToolResult, decisionOutput, error) {
	req, err := api.DecodeRequest(strings.NewReader(input.RequestJSON))
	if err != nil {
		return nil, decisionOutput{}, err
	}
	resp, err := s.gateway.Evaluate(ctx, *req.Transaction, *req.Customer)
	if err != nil {
		return nil, decisionOutput{}, fmt.Errorf("evaluate_transaction: %w", err)
	}
	return nil, toOutput(resp), nil
}

func (s *Server) handleFallback(_ context.Context, _ *sdkmcp.CallToolRequest, input evaluateInput) (*sdkmcp.CallToolResult, decisionOutput, error) {
	req, err := api.DecodeRequest(strings.NewReader(input.RequestJSON))
	if err != nil {
		return nil, decisionOutput{}, err
	}
	resp := s.gateway.Fallback("", *req.Transaction, *req.Customer)
	return nil, toOutput(&resp), nil
}

func (s *Server) handleListReviews(_ context.Context, _ *sdkmcp.CallToolRequest, input listReviewsInput) (*sdkmcp.CallToolResult, listReviewsOutput, error) {
	if s.store == nil {
		return nil, listReviewsOutput{}, errNoStore
	}
	status := store.ReviewStatus(strings.ToUpper(input.Status))
	switch status {
	case "":
		status = store.ReviewOpen
	case "ALL":
		status = ""
	}
	cases, err := s.store.ListReviews(status)
	if err != nil {
		return nil, listReviewsOutput{}, fmt.Errorf("list_reviews: %w", err)
	}
	out := listReviewsOutput{Reviews: make([]reviewSummary, 0, len(cases)), Count: len(cases)}
	for _, rc := range cases {
		out.Reviews = append(out.Reviews, summarize(rc))
	}
	logging.New("mcp").Debug("reviews listed", "status", status, "count", out.Count)
	return nil, out, nil
}

func (s *Server) handleResolveReview(_ context.Context, _ *sdkmcp.CallToolRequest, input resolveReviewInput) (*sdkmcp.CallToolResult, reviewSummary, error) {
	if s.store == nil {
		return nil, reviewSummary{}, errNoStore
	}
	if input.ID == "" {
		return nil, reviewSummary{}, fmt.Errorf("id is required")
	}
	rc, err := s.store.ResolveReview(input.ID, store.Resolution{
		Decision: types.Decision(strings.ToUpper(input.Decision)),
		Reviewer: input.Reviewer,
		Notes:    input.Notes,
	})
	if err != nil {
		return nil, reviewSummary{}, fmt.Errorf("resolve_review: %w", err)
	}
	return nil, summarize(rc), nil
}

var errNoStore = errors.New("no store configured")

func toOutput(r *api.OrchestrateResponse) decisionOutput {
	out := decisionOutput{
		TraceID:             r.TraceID,
		Decision:            string(r.Decision),
		Confidence:          r.Confidence,
		ProposedDecision:    string(r.ProposedDecision),
		Source:              string(r.Source),
		Signals:             append([]string{}, r.Signals...),
		PolicyIDs:           make([]string, 0, len(r.CitationsInternal)),
		ExternalURLs:        make([]string, 0, len(r.CitationsExternal)),
		ExplanationCustomer: r.ExplanationCustomer,
		ExplanationAudit:    r.ExplanationAudit,
	}
	for _, c := range r.CitationsInternal {
		out.PolicyIDs = append(out.PolicyIDs, c.PolicyID)
	}
	for _, c := range r.CitationsExternal {
		out.ExternalURLs = append(out.ExternalURLs, c.URL)
	}
	return out
}

func summarize(rc *store.ReviewCase) reviewSummary {
	return reviewSummary{
		ID:               rc.ID,
		TraceID:          rc.TraceID,
		TransactionID:    rc.TransactionID,
		ProposedDecision: string(rc.ProposedDecision),
		Confidence:       rc.Confidence,
		Status:           string(rc.Status),
		HumanDecision:    string(rc.HumanDecision),
		CreatedAt:        rc.CreatedAt.UTC().Format(time.RFC3339),
	}
}
