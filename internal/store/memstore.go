package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"riskgraph/pkg/types"
)

// MemStore implements Store in memory. Safe for concurrent use; records are
// copied on the way in and out.
type MemStore struct {
	mu        sync.Mutex
	decisions map[string]*types.DecisionRecord
	order     []string // trace ids in insertion order
	traces    map[string]*types.AuditTrace
	reviews   map[string]*ReviewCase
	byTrace   map[string]string // trace id -> review id
	reviewSeq []string
	now       func() time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		decisions: make(map[string]*types.DecisionRecord),
		traces:    make(map[string]*types.AuditTrace),
		reviews:   make(map[string]*ReviewCase),
		byTrace:   make(map[string]string),
		now:       time.Now,
	}
}

func (s *MemStore) SaveDecision(rec *types.DecisionRecord) error {
	if rec == nil {
		return fmt.Errorf("decision record is nil")
	}
	cp := *rec
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decisions[rec.TraceID]; !ok {
		s.order = append(s.order, rec.TraceID)
	}
	s.decisions[rec.TraceID] = &cp
	return nil
}

func (s *MemStore) GetDecision(traceID string) (*types.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.decisions[traceID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) ListDecisions(limit int) ([]*types.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.DecisionRecord
	for i := len(s.order) - 1; i >= 0; i-- {
		cp := *s.decisions[s.order[i]]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) SaveTrace(trace *types.AuditTrace) error {
	if trace == nil {
		return fmt.Errorf("audit trace is nil")
	}
	cp := *trace
	cp.Path = append([]types.StageRecord(nil), trace.Path...)
	s.mu.Lock()
	s.traces[trace.TraceID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemStore) GetTrace(traceID string) (*types.AuditTrace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.traces[traceID]
	if !ok {
		return nil, nil
	}
	cp := *t
	cp.Path = append([]types.StageRecord(nil), t.Path...)
	return &cp, nil
}

func (s *MemStore) OpenReview(rec *types.DecisionRecord) (*ReviewCase, error) {
	if rec == nil {
		return nil, fmt.Errorf("decision record is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byTrace[rec.TraceID]; ok {
		cp := *s.reviews[id]
		return &cp, nil
	}
	proposed := rec.Outcome.ProposedDecision
	if proposed == "" {
		proposed = rec.Outcome.Decision
	}
	rc := &ReviewCase{
		ID:               uuid.NewString(),
		TraceID:          rec.TraceID,
		TransactionID:    rec.TransactionID,
		CustomerID:       rec.CustomerID,
		ProposedDecision: proposed,
		Confidence:       rec.Outcome.Confidence,
		Status:           ReviewOpen,
		CreatedAt:        s.now(),
	}
	s.reviews[rc.ID] = rc
	s.byTrace[rc.TraceID] = rc.ID
	s.reviewSeq = append(s.reviewSeq, rc.ID)
	cp := *rc
	return &cp, nil
}

func (s *MemStore) GetReview(id string) (*ReviewCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.reviews[id]
	if !ok {
		return nil, nil
	}
	cp := *rc
	return &cp, nil
}

func (s *MemStore) ListReviews(status ReviewStatus) ([]*ReviewCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ReviewCase
	for _, id := range s.reviewSeq {
		rc := s.reviews[id]
		if status != "" && rc.Status != status {
			continue
		}
		cp := *rc
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) ResolveReview(id string, res Resolution) (*ReviewCase, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review case %s: %w", id, ErrNotFound)
	}
	if rc.Status != ReviewOpen && rc.Status != ReviewInProgress {
		return nil, fmt.Errorf("review case %s: %w", id, ErrAlreadyResolved)
	}
	now := s.now()
	rc.Status = ReviewResolved
	rc.HumanDecision = res.Decision
	rc.AssignedTo = res.Reviewer
	rc.Notes = res.Notes
	rc.ResolvedAt = &now
	cp := *rc
	return &cp, nil
}

func (s *MemStore) Close() error { return nil }
