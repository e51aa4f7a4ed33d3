// Package orchestrate runs the fraud decision pipeline: deterministic signals,
// parallel evidence retrieval, debate and arbitration by the reasoning
// backend, the confidence gate, and the two explanations.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"riskgraph/internal/decision"
	"riskgraph/internal/logging"
	"riskgraph/internal/reasoning"
	"riskgraph/internal/signal"
	"riskgraph/internal/store"
	"riskgraph/pkg/graph"
	"riskgraph/pkg/types"
)

// DefaultRunTimeout bounds one pipeline run.
const DefaultRunTimeout = 60 * time.Second

// DefaultMaxResults is the evidence count asked from each retrieval adapter.
const DefaultMaxResults = 3

// Engine owns the compiled pipeline and its collaborators. It holds no
// per-run state: concurrent Run calls are independent.
type Engine struct {
	graph      *graph.Graph[*PipelineState]
	backend    reasoning.Backend
	runTimeout time.Duration
	logger     *slog.Logger
	store      store.Store
	newID      func() string
	now        func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	runTimeout  time.Duration
	logger      *slog.Logger
	store       store.Store
	newID       func() string
	now         func() time.Time
	threshold   float64
	multiplier  float64
	maxResults  int
	maxParallel int
	prompts     *Prompts
	observers   []graph.Observer
}

// WithRunTimeout sets the per-run deadline.
func WithRunTimeout(d time.Duration) EngineOption {
	return func(c *engineConfig) { c.runTimeout = d }
}

// WithLogger overrides the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = l }
}

// WithStore persists decisions, audit traces and review cases after each run.
func WithStore(s store.Store) EngineOption {
	return func(c *engineConfig) { c.store = s }
}

// WithConfidenceThreshold sets the escalation threshold of the gate.
func WithConfidenceThreshold(t float64) EngineOption {
	return func(c *engineConfig) { c.threshold = t }
}

// WithAmountMultiplier sets K of the amount-deviation rule.
func WithAmountMultiplier(k float64) EngineOption {
	return func(c *engineConfig) { c.multiplier = k }
}

// WithMaxResults sets how many items each retrieval stage asks for.
func WithMaxResults(n int) EngineOption {
	return func(c *engineConfig) { c.maxResults = n }
}

// WithMaxParallel bounds the number of stages of one run executing at once.
func WithMaxParallel(n int) EngineOption {
	return func(c *engineConfig) { c.maxParallel = n }
}

// WithPrompts replaces the embedded prompt templates.
func WithPrompts(p *Prompts) EngineOption {
	return func(c *engineConfig) { c.prompts = p }
}

// WithObserver attaches an observer to every run.
func WithObserver(o graph.Observer) EngineOption {
	return func(c *engineConfig) { c.observers = append(c.observers, o) }
}

// WithIDGenerator overrides trace id generation.
func WithIDGenerator(f func() string) EngineOption {
	return func(c *engineConfig) { c.newID = f }
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(c *engineConfig) { c.now = now }
}

// NewEngine compiles the pipeline over the given collaborators.
func NewEngine(backend reasoning.Backend, policies PolicyRetriever, threats ThreatSearcher, opts ...EngineOption) (*Engine, error) {
	if backend == nil || policies == nil || threats == nil {
		return nil, errors.New("orchestrate: backend, policy retriever and threat searcher are required")
	}
	cfg := &engineConfig{
		runTimeout: DefaultRunTimeout,
		newID:      uuid.NewString,
		now:        time.Now,
		maxResults: DefaultMaxResults,
		threshold:  decision.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.New("orchestrate")
	}
	if cfg.prompts == nil {
		p, err := LoadPrompts("")
		if err != nil {
			return nil, err
		}
		cfg.prompts = p
	}
	if cfg.maxResults <= 0 {
		cfg.maxResults = DefaultMaxResults
	}

	stages := &stageSet{
		detector:   signal.NewDetector(cfg.multiplier),
		policies:   policies,
		threats:    threats,
		backend:    backend,
		gate:       decision.NewGate(cfg.threshold),
		prompts:    cfg.prompts,
		maxResults: cfg.maxResults,
	}
	graphOpts := []graph.Option{graph.WithMaxParallel(cfg.maxParallel)}
	if len(cfg.observers) > 0 {
		graphOpts = append(graphOpts, graph.WithObserver(graph.MultiObserver(cfg.observers)))
	}
	g, err := buildGraph(stages, graphOpts...)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return &Engine{
		graph:      g,
		backend:    backend,
		runTimeout: cfg.runTimeout,
		logger:     cfg.logger,
		store:      cfg.store,
		newID:      cfg.newID,
		now:        cfg.now,
	}, nil
}

// Graph exposes the compiled pipeline, for rendering.
func (e *Engine) Graph() *graph.Graph[*PipelineState] { return e.graph }

// Result is the outcome of one run. Trace is always set; Record is nil when
// the run failed.
type Result struct {
	TraceID string
	Record  *types.DecisionRecord
	Trace   types.AuditTrace

	// BackendCalls and BackendFailures count this run's reasoning calls.
	BackendCalls    int64
	BackendFailures int64
}

// Run evaluates one transaction. On any reasoning failure or timeout it
// returns the error together with a Result carrying the trace id and the
// partial audit trace; it never returns a partially populated record.
func (e *Engine) Run(ctx context.Context, tx types.Transaction, customer types.CustomerProfile) (*Result, error) {
	traceID := e.newID()
	logger := logging.WithTrace(e.logger, traceID)
	if e.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.runTimeout)
		defer cancel()
	}

	ctx, span := startRunSpan(ctx, traceID, tx.ID)
	defer span.End()

	started := e.now()
	rec := newAuditRecorder(types.AuditTrace{
		TraceID:       traceID,
		TransactionID: tx.ID,
		Source:        types.SourcePipeline,
		StartedAt:     started,
	})
	state := NewPipelineState(traceID, tx, customer)
	state.calls = reasoning.NewCounting(e.backend)

	logger.InfoContext(ctx, "pipeline start", "transaction_id", tx.ID, "customer_id", customer.ID)
	runErr := e.graph.Run(ctx, state, rec, &graph.LogObserver{Logger: logger})

	trace := rec.snapshot()
	trace.Signals = state.Signals.Value()
	trace.EvidenceRefs = state.EvidenceRefs()
	trace.FinishedAt = e.now()
	result := &Result{
		TraceID:         traceID,
		Trace:           trace,
		BackendCalls:    state.calls.Calls(),
		BackendFailures: state.calls.Failures(),
	}

	if runErr == nil {
		record, err := state.Record(trace.FinishedAt)
		if err != nil {
			runErr = err
		} else {
			result.Record = record
		}
	}
	if runErr != nil {
		result.Trace.Error = runErr.Error()
		logger.ErrorContext(ctx, "pipeline failed", "error", runErr, "stages_completed", len(trace.Path),
			"backend_calls", result.BackendCalls, "backend_failures", result.BackendFailures)
		e.persist(logger, nil, &result.Trace)
		endSpan(span, runErr)
		return result, fmt.Errorf("pipeline %s: %w", traceID, runErr)
	}

	logger.InfoContext(ctx, "pipeline done",
		"decision", result.Record.Outcome.Decision,
		"confidence", result.Record.Outcome.Confidence,
		"escalated", result.Record.Outcome.Escalated,
		"signals", len(result.Record.Signals),
		"backend_calls", result.BackendCalls,
		"backend_failures", result.BackendFailures)
	e.persist(logger, result.Record, &result.Trace)
	span.SetAttributes(
		attribute.String("riskgraph.decision", string(result.Record.Outcome.Decision)),
		attribute.Int64("riskgraph.backend_calls", result.BackendCalls),
	)
	endSpan(span, nil)
	return result, nil
}

// persist stores the run. Storage errors are logged; the decision stands.
func (e *Engine) persist(logger *slog.Logger, record *types.DecisionRecord, trace *types.AuditTrace) {
	if e.store == nil {
		return
	}
	if err := store.Record(e.store, record, trace); err != nil {
		logger.Error("persist run", "error", err)
	}
}
