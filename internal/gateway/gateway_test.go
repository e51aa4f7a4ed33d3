package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"riskgraph/internal/api"
	"riskgraph/internal/decision"
	"riskgraph/internal/evidence"
	"riskgraph/internal/logging"
	"riskgraph/internal/orchestrate"
	"riskgraph/internal/reasoning"
	"riskgraph/internal/reasoning/reasoningtest"
	"riskgraph/internal/store"
	"riskgraph/pkg/types"
)

func init() { gin.SetMode(gin.TestMode) }

func input(signals int) (types.Transaction, types.CustomerProfile) {
	tx := types.Transaction{
		ID:        "T-1",
		Amount:    decimal.NewFromInt(100),
		Country:   "PE",
		DeviceID:  "D-01",
		Timestamp: time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC),
	}
	cust := types.CustomerProfile{
		ID:             "CU-1",
		UsualAmountAvg: decimal.NewFromInt(100),
		UsualHours:     "08-20",
		UsualCountries: types.NewStringSet("PE"),
		UsualDevices:   types.NewStringSet("D-01"),
	}
	if signals >= 1 {
		tx.DeviceID = "D-99"
	}
	if signals >= 2 {
		tx.Country = "BR"
	}
	if signals >= 3 {
		tx.Amount = decimal.NewFromInt(1000)
	}
	return tx, cust
}

// isolation bundles every networked collaborator with a call counter.
type isolation struct {
	backend *reasoning.Counting
	kbCalls atomic.Int32
	web     *httptest.Server
	webHits atomic.Int32
	engine  *orchestrate.Engine
}

func newIsolation(t *testing.T) *isolation {
	t.Helper()
	iso := &isolation{backend: reasoning.NewCounting(&reasoningtest.Static{Text: "t", Structured: `{"decision":"APPROVE","confidence":0.9,"reasoning":"r"}`})}
	iso.web = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		iso.webHits.Add(1)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	t.Cleanup(iso.web.Close)
	search := evidence.NewWebSearch("tvly-key", nil, evidence.WithBaseURL(iso.web.URL), evidence.WithSearchLogger(logging.Discard()))
	kb := evidence.NewKnowledgeBase(nil, "", nil, evidence.WithKnowledgeBaseLogger(logging.Discard()))
	eng, err := orchestrate.NewEngine(iso.backend, countingKB{kb, &iso.kbCalls}, search, orchestrate.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	iso.engine = eng
	return iso
}

type countingKB struct {
	kb    *evidence.KnowledgeBase
	calls *atomic.Int32
}

func (c countingKB) Retrieve(ctx context.Context, q string, n int) []types.EvidenceItem {
	c.calls.Add(1)
	return c.kb.Retrieve(ctx, q, n)
}

func unreachableURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestGateway_UnreachableEndpointFallsBackWithoutBackendCalls(t *testing.T) {
	iso := newIsolation(t)
	st := store.NewMemStore()
	gw := New(NewHTTPPrimary(unreachableURL(t), time.Second), decision.Controller{}, WithStore(st), WithLogger(logging.Discard()))

	tests := []struct {
		signals    int
		decision   types.Decision
		confidence float64
	}{
		{3, types.DecisionBlock, 0.8},
		{1, types.DecisionChallenge, 0.6},
		{0, types.DecisionApprove, 0.9},
	}
	for _, tc := range tests {
		tx, cust := input(tc.signals)
		resp, err := gw.Evaluate(context.Background(), tx, cust)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if resp.Source != types.SourceFallback || resp.Decision != tc.decision || resp.Confidence != tc.confidence {
			t.Errorf("%d signals: got %s@%v from %s", tc.signals, resp.Decision, resp.Confidence, resp.Source)
		}
		if len(resp.Signals) != tc.signals {
			t.Errorf("signals = %v", resp.Signals)
		}
		if resp.TraceID == "" || resp.CitationsInternal == nil || resp.CitationsExternal == nil {
			t.Errorf("incomplete fallback response: %+v", resp)
		}
		if rec, _ := st.GetDecision(resp.TraceID); rec == nil || rec.Source != types.SourceFallback {
			t.Errorf("fallback decision not persisted")
		}
	}

	if n := iso.backend.Calls(); n != 0 {
		t.Errorf("reasoning backend calls = %d, want 0", n)
	}
	if n := iso.kbCalls.Load(); n != 0 {
		t.Errorf("knowledge base calls = %d, want 0", n)
	}
	if n := iso.webHits.Load(); n != 0 {
		t.Errorf("web search calls = %d, want 0", n)
	}
}

func TestGateway_ServerErrorFallsBackWithTraceID(t *testing.T) {
	failing := api.NewServer(evaluatorFunc(func() (*orchestrate.Result, error) {
		return &orchestrate.Result{TraceID: "trace-500"}, errors.New("stage aggregation: timeout")
	}), nil, api.WithServerLogger(logging.Discard()))
	srv := httptest.NewServer(failing.Handler())
	defer srv.Close()

	gw := New(NewHTTPPrimary(srv.URL, time.Second), decision.Controller{}, WithLogger(logging.Discard()))
	tx, cust := input(1)
	resp, err := gw.Evaluate(context.Background(), tx, cust)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if resp.Source != types.SourceFallback || resp.TraceID != "trace-500" {
		t.Errorf("expected fallback correlated to failed run, got %+v", resp)
	}
}

func TestGateway_RejectionIsNotMaskedByFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"missing transaction or customer data"}`))
	}))
	defer srv.Close()

	gw := New(NewHTTPPrimary(srv.URL, time.Second), decision.Controller{}, WithLogger(logging.Discard()))
	tx, cust := input(0)
	if _, err := gw.Evaluate(context.Background(), tx, cust); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestGateway_PipelineDecisionPassesThrough(t *testing.T) {
	iso := newIsolation(t)
	srv := httptest.NewServer(api.NewServer(iso.engine, nil, api.WithServerLogger(logging.Discard())).Handler())
	defer srv.Close()

	gw := New(NewHTTPPrimary(srv.URL, 5*time.Second), decision.Controller{}, WithLogger(logging.Discard()))
	tx, cust := input(0)
	resp, err := gw.Evaluate(context.Background(), tx, cust)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if resp.Source != types.SourcePipeline || resp.Decision != types.DecisionApprove {
		t.Errorf("response = %+v", resp)
	}
	if iso.backend.StructuredCalls() != 1 {
		t.Errorf("arbiter calls = %d", iso.backend.StructuredCalls())
	}
	if iso.webHits.Load() != 1 {
		t.Errorf("web hits = %d", iso.webHits.Load())
	}
}

func TestGateway_LocalPrimaryFailureFallsBack(t *testing.T) {
	gw := New(LocalPrimary{Evaluator: evaluatorFunc(func() (*orchestrate.Result, error) {
		return &orchestrate.Result{TraceID: "local-1"}, context.DeadlineExceeded
	})}, decision.Controller{}, WithLogger(logging.Discard()))
	tx, cust := input(3)
	resp, err := gw.Evaluate(context.Background(), tx, cust)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Decision != types.DecisionBlock || resp.TraceID != "local-1" {
		t.Errorf("response = %+v", resp)
	}
}

type evaluatorFunc func() (*orchestrate.Result, error)

func (f evaluatorFunc) Run(context.Context, types.Transaction, types.CustomerProfile) (*orchestrate.Result, error) {
	return f()
}
