package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"riskgraph/pkg/types"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := Open(filepath.Join(t.TempDir(), "nested", "riskgraph.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"sqlite": sq, "memory": NewMemStore()}
}

func sampleRecord(traceID string, d types.Decision, at time.Time) *types.DecisionRecord {
	out := types.Outcome{Decision: d, Confidence: 0.91, Reasoning: "card testing pattern"}
	if d == types.DecisionEscalate {
		out = types.Outcome{Decision: d, Confidence: 0.55, Reasoning: "unsure", ProposedDecision: types.DecisionApprove, Escalated: true}
	}
	return &types.DecisionRecord{
		TraceID:       traceID,
		TransactionID: "T-" + traceID,
		CustomerID:    "CU-001",
		Source:        types.SourcePipeline,
		Outcome:       out,
		Signals:       types.NewSignalSet(types.SignalUnknownDevice, types.SignalAmountDeviation),
		InternalEvidence: []types.EvidenceItem{
			{Kind: types.EvidenceInternal, Identifier: "FP-01", ChunkID: "0", Version: "2025.1", Text: "amount rule"},
		},
		ExternalEvidence:    []types.EvidenceItem{},
		Debate:              types.DebateArguments{ProFraud: "pf", ProCustomer: "pc"},
		ExplanationCustomer: "blocked",
		ExplanationAudit:    "audit",
		CreatedAt:           at,
	}
}

func TestStore_DecisionRoundTrip(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord("a", types.DecisionBlock, base)
			if err := s.SaveDecision(rec); err != nil {
				t.Fatalf("SaveDecision: %v", err)
			}
			got, err := s.GetDecision("a")
			if err != nil {
				t.Fatalf("GetDecision: %v", err)
			}
			if diff := cmp.Diff(rec, got); diff != "" {
				t.Errorf("round trip (-want +got):\n%s", diff)
			}

			missing, err := s.GetDecision("nope")
			if err != nil || missing != nil {
				t.Errorf("GetDecision missing = %v, %v; want nil, nil", missing, err)
			}

			if err := s.SaveDecision(sampleRecord("b", types.DecisionApprove, base.Add(time.Minute))); err != nil {
				t.Fatal(err)
			}
			list, err := s.ListDecisions(0)
			if err != nil || len(list) != 2 || list[0].TraceID != "b" {
				t.Fatalf("ListDecisions = %d items, err %v", len(list), err)
			}
			list, _ = s.ListDecisions(1)
			if len(list) != 1 {
				t.Errorf("limit not applied: %d", len(list))
			}
		})
	}
}

func TestStore_TraceRoundTrip(t *testing.T) {
	start := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			trace := &types.AuditTrace{
				TraceID:       "tr-1",
				TransactionID: "T-1",
				Source:        types.SourcePipeline,
				Path: []types.StageRecord{
					{Stage: "context", StartedAt: start, FinishedAt: start.Add(time.Millisecond), Status: types.StageOK},
					{Stage: "aggregation", StartedAt: start, FinishedAt: start.Add(time.Second), Status: types.StageFailed, Error: "timeout"},
				},
				Signals:      types.NewSignalSet(types.SignalUnusualHour),
				EvidenceRefs: []string{"internal:FP-01@2025.1#0"},
				StartedAt:    start,
				FinishedAt:   start.Add(time.Second),
				Error:        "stage aggregation: timeout",
			}
			if err := s.SaveTrace(trace); err != nil {
				t.Fatalf("SaveTrace: %v", err)
			}
			got, err := s.GetTrace("tr-1")
			if err != nil {
				t.Fatalf("GetTrace: %v", err)
			}
			if diff := cmp.Diff(trace, got); diff != "" {
				t.Errorf("round trip (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_ReviewLifecycle(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord("esc", types.DecisionEscalate, time.Now())
			if err := Record(s, rec, &types.AuditTrace{TraceID: "esc", TransactionID: rec.TransactionID}); err != nil {
				t.Fatalf("Record: %v", err)
			}
			open, err := s.ListReviews(ReviewOpen)
			if err != nil || len(open) != 1 {
				t.Fatalf("ListReviews = %d, %v", len(open), err)
			}
			rc := open[0]
			if rc.ProposedDecision != types.DecisionApprove || rc.Confidence != 0.55 || rc.TraceID != "esc" {
				t.Errorf("review case = %+v", rc)
			}

			again, err := s.OpenReview(rec)
			if err != nil || again.ID != rc.ID {
				t.Errorf("OpenReview must be idempotent per trace: %+v, %v", again, err)
			}

			if _, err := s.ResolveReview(rc.ID, Resolution{Decision: types.DecisionEscalate}); !errors.Is(err, ErrInvalidResolution) {
				t.Errorf("expected ErrInvalidResolution, got %v", err)
			}
			resolved, err := s.ResolveReview(rc.ID, Resolution{Decision: types.DecisionChallenge, Reviewer: "analyst-7", Notes: "called customer"})
			if err != nil {
				t.Fatalf("ResolveReview: %v", err)
			}
			if resolved.Status != ReviewResolved || resolved.HumanDecision != types.DecisionChallenge || resolved.ResolvedAt == nil || resolved.AssignedTo != "analyst-7" {
				t.Errorf("resolved = %+v", resolved)
			}
			if _, err := s.ResolveReview(rc.ID, Resolution{Decision: types.DecisionBlock}); !errors.Is(err, ErrAlreadyResolved) {
				t.Errorf("expected ErrAlreadyResolved, got %v", err)
			}
			if _, err := s.ResolveReview("missing", Resolution{Decision: types.DecisionBlock}); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			if open, _ := s.ListReviews(ReviewOpen); len(open) != 0 {
				t.Errorf("open cases after resolve = %d", len(open))
			}
			if all, _ := s.ListReviews(""); len(all) != 1 {
				t.Errorf("all cases = %d", len(all))
			}
		})
	}
}

func TestRecord_NonEscalatedOpensNoReview(t *testing.T) {
	s := NewMemStore()
	if err := Record(s, sampleRecord("x", types.DecisionBlock, time.Now()), nil); err != nil {
		t.Fatal(err)
	}
	if all, _ := s.ListReviews(""); len(all) != 0 {
		t.Errorf("unexpected review cases: %d", len(all))
	}
	if err := Record(s, nil, &types.AuditTrace{TraceID: "failed", Error: "boom"}); err != nil {
		t.Fatal(err)
	}
	if tr, _ := s.GetTrace("failed"); tr == nil || tr.Error != "boom" {
		t.Errorf("failed-run trace not stored: %+v", tr)
	}
}

func TestOpen_ReopensExistingDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDecision(sampleRecord("keep", types.DecisionBlock, time.Now())); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if rec, err := s.GetDecision("keep"); err != nil || rec == nil {
		t.Errorf("record lost across reopen: %v, %v", rec, err)
	}
}
