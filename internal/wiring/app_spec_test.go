package wiring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"riskgraph/internal/api"
	"riskgraph/internal/config"
	"riskgraph/internal/logging"
	"riskgraph/internal/reasoning"
	"riskgraph/internal/reasoning/reasoningtest"
	"riskgraph/pkg/types"
)

const requestBody = `{
  "transaction": {"id": "T-77", "amount": 2400, "currency": "PEN", "country": "CL",
                  "device_id": "D-NEW", "merchant_id": "M-9", "timestamp": "2026-01-28T02:40:00Z"},
  "customer": {"id": "CU-7", "usual_amount_avg": 600, "usual_hours": "08-22",
               "usual_countries": ["PE"], "usual_devices": ["D-01"]}
}`

// scriptedConverse answers free-text prompts with prose and structured
// prompts (those carrying a system block) with verdict.
type scriptedConverse struct {
	mu      sync.Mutex
	verdict string
	err     error
	calls   int
}

func (s *scriptedConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	text := "The transaction shows several risk indicators."
	if len(in.System) > 0 {
		text = s.verdict
	}
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
	}, nil
}

func (s *scriptedConverse) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newSearchServer(hits *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"url":"https://www.reuters.com/fraud","content":"card testing wave in CL","published_date":"2026-01-20"}]}`))
	}))
}

func testConfig(searchURL string) config.Config {
	cfg := config.Default()
	cfg.Search.APIKey = "tvly-test"
	cfg.Search.BaseURL = searchURL
	cfg.DBPath = MemoryDBPath
	return cfg
}

func post(app *App) (*httptest.ResponseRecorder, api.OrchestrateResponse) {
	req := httptest.NewRequest(http.MethodPost, "/orchestrate", strings.NewReader(requestBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.API.Handler().ServeHTTP(w, req)
	var resp api.OrchestrateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func decode(body string) api.OrchestrateRequest {
	req, err := api.DecodeRequest(strings.NewReader(body))
	gomega.Expect(err).To(gomega.Succeed())
	return req
}

var _ = ginkgo.Describe("Build", func() {
	var (
		hits   atomic.Int32
		search *httptest.Server
		ctx    context.Context
	)

	ginkgo.BeforeEach(func() {
		hits.Store(0)
		search = newSearchServer(&hits)
		ctx = context.Background()
	})

	ginkgo.AfterEach(func() {
		search.Close()
	})

	ginkgo.It("serves a pipeline decision over HTTP and records it", func() {
		converse := &scriptedConverse{verdict: `{"decision":"BLOCK","confidence":0.85,"reasoning":"new country and device"}`}
		app, err := Build(ctx, testConfig(search.URL), WithConverseClient(converse), WithLogger(logging.Discard()))
		gomega.Expect(err).To(gomega.Succeed())
		defer app.Close()

		w, resp := post(app)
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(resp.Decision).To(gomega.Equal(types.DecisionBlock))
		gomega.Expect(resp.Source).To(gomega.Equal(types.SourcePipeline))
		gomega.Expect(resp.Signals).To(gomega.HaveLen(4))
		gomega.Expect(resp.CitationsInternal).To(gomega.HaveLen(1))
		gomega.Expect(resp.CitationsInternal[0].PolicyID).To(gomega.Equal("MOCK-01"))
		gomega.Expect(resp.CitationsExternal).To(gomega.HaveLen(1))
		gomega.Expect(resp.CitationsExternal[0].Source).To(gomega.Equal("reuters.com"))
		gomega.Expect(hits.Load()).To(gomega.Equal(int32(1)))
		// aggregation, two debaters, two explanations, one arbiter.
		gomega.Expect(converse.Calls()).To(gomega.Equal(6))

		rec, err := app.Store.GetDecision(resp.TraceID)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(rec).NotTo(gomega.BeNil())
		gomega.Expect(rec.Outcome.Decision).To(gomega.Equal(types.DecisionBlock))
	})

	ginkgo.It("answers 500 over HTTP but falls back through the gateway when Bedrock fails", func() {
		converse := &scriptedConverse{err: errors.New("ThrottlingException")}
		app, err := Build(ctx, testConfig(search.URL), WithConverseClient(converse), WithLogger(logging.Discard()))
		gomega.Expect(err).To(gomega.Succeed())
		defer app.Close()

		w, _ := post(app)
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusInternalServerError))

		req := decode(requestBody)
		resp, err := app.Gateway.Evaluate(ctx, *req.Transaction, *req.Customer)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(resp.Source).To(gomega.Equal(types.SourceFallback))
		gomega.Expect(resp.Decision).To(gomega.Equal(types.DecisionBlock))
		gomega.Expect(resp.Confidence).To(gomega.Equal(0.8))

		trace, err := app.Store.GetTrace(resp.TraceID)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(trace.Source).To(gomega.Equal(types.SourceFallback))
	})

	ginkgo.It("routes escalations to the review queue", func() {
		converse := &scriptedConverse{verdict: `{"decision":"CHALLENGE","confidence":0.3,"reasoning":"unclear"}`}
		app, err := Build(ctx, testConfig(search.URL), WithConverseClient(converse), WithLogger(logging.Discard()))
		gomega.Expect(err).To(gomega.Succeed())
		defer app.Close()

		_, resp := post(app)
		gomega.Expect(resp.Decision).To(gomega.Equal(types.DecisionEscalate))
		gomega.Expect(resp.ProposedDecision).To(gomega.Equal(types.DecisionChallenge))

		reviews, err := app.Store.ListReviews("OPEN")
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(reviews).To(gomega.HaveLen(1))
		gomega.Expect(reviews[0].TraceID).To(gomega.Equal(resp.TraceID))
	})

	ginkgo.It("never escalates when the configured threshold is zero", func() {
		gomega.Expect(os.Setenv("RISKGRAPH_CONFIDENCE_THRESHOLD", "0")).To(gomega.Succeed())
		ginkgo.DeferCleanup(os.Unsetenv, "RISKGRAPH_CONFIDENCE_THRESHOLD")
		cfg, err := config.Load("")
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(cfg.Pipeline.ConfidenceThreshold).To(gomega.BeZero())
		cfg.Search.APIKey = "tvly-test"
		cfg.Search.BaseURL = search.URL
		cfg.DBPath = MemoryDBPath
		cfg.Gateway.PrimaryURL = ""

		converse := &scriptedConverse{verdict: `{"decision":"CHALLENGE","confidence":0.3,"reasoning":"unclear"}`}
		app, err := Build(ctx, cfg, WithConverseClient(converse), WithLogger(logging.Discard()))
		gomega.Expect(err).To(gomega.Succeed())
		defer app.Close()

		_, resp := post(app)
		gomega.Expect(resp.Decision).To(gomega.Equal(types.DecisionChallenge))
		gomega.Expect(resp.Confidence).To(gomega.Equal(0.3))

		reviews, err := app.Store.ListReviews("")
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(reviews).To(gomega.BeEmpty())
	})

	ginkgo.It("uses the remote primary when configured and falls back when it is down", func() {
		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()

		cfg := testConfig(search.URL)
		cfg.Gateway.PrimaryURL = deadURL
		backend := reasoning.NewCounting(&reasoningtest.Static{Text: "x"})
		app, err := Build(ctx, cfg, WithBackend(backend), WithLogger(logging.Discard()))
		gomega.Expect(err).To(gomega.Succeed())
		defer app.Close()

		req := decode(requestBody)
		resp, err := app.Gateway.Evaluate(ctx, *req.Transaction, *req.Customer)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(resp.Source).To(gomega.Equal(types.SourceFallback))
		gomega.Expect(backend.Calls()).To(gomega.BeZero())
		gomega.Expect(hits.Load()).To(gomega.BeZero())
	})

	ginkgo.It("persists to SQLite across rebuilds", func() {
		cfg := testConfig(search.URL)
		cfg.DBPath = filepath.Join(ginkgo.GinkgoT().TempDir(), "nested", "riskgraph.db")
		backend := &reasoningtest.Static{Text: "x", Structured: `{"decision":"APPROVE","confidence":0.95,"reasoning":"ok"}`}

		app, err := Build(ctx, cfg, WithBackend(backend), WithLogger(logging.Discard()))
		gomega.Expect(err).To(gomega.Succeed())
		_, resp := post(app)
		gomega.Expect(resp.Decision).To(gomega.Equal(types.DecisionApprove))
		gomega.Expect(app.Close()).To(gomega.Succeed())

		again, err := Build(ctx, cfg, WithBackend(backend), WithLogger(logging.Discard()))
		gomega.Expect(err).To(gomega.Succeed())
		defer again.Close()
		rec, err := again.Store.GetDecision(resp.TraceID)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(rec).NotTo(gomega.BeNil())
	})

	ginkgo.It("rejects invalid configuration", func() {
		cfg := testConfig(search.URL)
		cfg.Pipeline.ConfidenceThreshold = 2
		_, err := Build(ctx, cfg, WithBackend(&reasoningtest.Static{}))
		gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("confidence_threshold")))
	})
})
