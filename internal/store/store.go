// Package store persists decision records, audit traces and the human review
// queue. The pipeline only produces records; the store is written after a run
// finishes and never read by it.
package store

import (
	"errors"
	"time"

	"riskgraph/pkg/types"
)

// DefaultDBPath is the default relative path for the SQLite DB.
const DefaultDBPath = ".riskgraph/riskgraph.db"

var (
	// ErrNotFound is returned when a review case does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyResolved is returned when resolving a closed review case.
	ErrAlreadyResolved = errors.New("store: review case already resolved")
	// ErrInvalidResolution is returned for a resolution without a final decision.
	ErrInvalidResolution = errors.New("store: resolution must be APPROVE, CHALLENGE or BLOCK")
)

// ReviewStatus is the lifecycle state of a human review case.
type ReviewStatus string

const (
	ReviewOpen       ReviewStatus = "OPEN"
	ReviewInProgress ReviewStatus = "IN_PROGRESS"
	ReviewResolved   ReviewStatus = "RESOLVED"
	ReviewClosed     ReviewStatus = "CLOSED"
)

// ReviewCase is one escalated decision waiting for, or decided by, a human.
type ReviewCase struct {
	ID               string         `json:"id"`
	TraceID          string         `json:"trace_id"`
	TransactionID    string         `json:"transaction_id"`
	CustomerID       string         `json:"customer_id"`
	ProposedDecision types.Decision `json:"proposed_decision"`
	Confidence       float64        `json:"confidence"`
	Status           ReviewStatus   `json:"status"`
	AssignedTo       string         `json:"assigned_to,omitempty"`
	HumanDecision    types.Decision `json:"human_decision,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	ResolvedAt       *time.Time     `json:"resolved_at,omitempty"`
}

// Resolution is a reviewer's final call on a case.
type Resolution struct {
	Decision types.Decision `json:"decision"`
	Reviewer string         `json:"reviewer"`
	Notes    string         `json:"notes"`
}

// Validate checks the resolution carries a final, non-escalating decision.
func (r Resolution) Validate() error {
	switch r.Decision {
	case types.DecisionApprove, types.DecisionChallenge, types.DecisionBlock:
		return nil
	}
	return ErrInvalidResolution
}

// Store is the persistence facade. Implementations are SQLite or in-memory.
// Get methods return (nil, nil) when the record does not exist.
type Store interface {
	// Decisions
	SaveDecision(rec *types.DecisionRecord) error
	GetDecision(traceID string) (*types.DecisionRecord, error)
	ListDecisions(limit int) ([]*types.DecisionRecord, error)
	// Audit traces
	SaveTrace(trace *types.AuditTrace) error
	GetTrace(traceID string) (*types.AuditTrace, error)
	// Human review queue
	OpenReview(rec *types.DecisionRecord) (*ReviewCase, error)
	GetReview(id string) (*ReviewCase, error)
	ListReviews(status ReviewStatus) ([]*ReviewCase, error)
	ResolveReview(id string, res Resolution) (*ReviewCase, error)

	Close() error
}

// Record persists one finished evaluation: the audit trace always, the
// decision when present, and a review case when the decision escalated.
func Record(s Store, rec *types.DecisionRecord, trace *types.AuditTrace) error {
	if trace != nil {
		if err := s.SaveTrace(trace); err != nil {
			return err
		}
	}
	if rec == nil {
		return nil
	}
	if err := s.SaveDecision(rec); err != nil {
		return err
	}
	if rec.Outcome.Decision == types.DecisionEscalate {
		if _, err := s.OpenReview(rec); err != nil {
			return err
		}
	}
	return nil
}
