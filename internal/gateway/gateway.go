// Package gateway is the caller side of the pipeline. It asks the
// orchestration entry point for a decision and, when that entry point cannot
// produce one, answers from the deterministic fallback table instead. The
// fallback path reaches neither the reasoning backend nor any retrieval
// service.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"riskgraph/internal/api"
	"riskgraph/internal/decision"
	"riskgraph/internal/logging"
	"riskgraph/internal/store"
	"riskgraph/pkg/types"
)

// ErrUnavailable marks a primary failure that triggers the fallback: the
// entry point was unreachable or failed the run.
var ErrUnavailable = errors.New("gateway: orchestration unavailable")

// ErrRejected marks a request the entry point refused as malformed. It is
// returned to the caller as is; falling back would hide the input error.
var ErrRejected = errors.New("gateway: request rejected")

// UnavailableError carries the trace id of a failed run, when there was one.
type UnavailableError struct {
	TraceID string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("orchestration unavailable (trace %s): %v", e.TraceID, e.Err)
	}
	return fmt.Sprintf("orchestration unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

// Primary produces pipeline decisions. Failures that should fall back must
// match ErrUnavailable.
type Primary interface {
	Evaluate(ctx context.Context, tx types.Transaction, customer types.CustomerProfile) (*api.OrchestrateResponse, error)
}

// Gateway runs the primary and falls back on unavailability.
type Gateway struct {
	primary  Primary
	fallback decision.Controller
	store    store.Store
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithStore persists fallback decisions and their audit traces.
func WithStore(s store.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New returns a Gateway over primary with the given fallback controller.
func New(primary Primary, fallback decision.Controller, opts ...Option) *Gateway {
	g := &Gateway{
		primary:  primary,
		fallback: fallback,
		logger:   logging.New("gateway"),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate returns the pipeline decision, or the fallback decision when the
// primary is unavailable. Rejected input is returned as an error.
func (g *Gateway) Evaluate(ctx context.Context, tx types.Transaction, customer types.CustomerProfile) (*api.OrchestrateResponse, error) {
	resp, err := g.primary.Evaluate(ctx, tx, customer)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	traceID := ""
	var ue *UnavailableError
	if errors.As(err, &ue) {
		traceID = ue.TraceID
	}
	logging.WithTrace(g.logger, traceID).Warn("primary unavailable, using fallback",
		"transaction_id", tx.ID, "error", err)

	rec := g.Fallback(traceID, tx, customer)
	return &rec, nil
}

// Fallback runs the deterministic path only and persists the result when a
// store is configured. An empty traceID is replaced by a fresh one.
func (g *Gateway) Fallback(traceID string, tx types.Transaction, customer types.CustomerProfile) api.OrchestrateResponse {
	if traceID == "" {
		traceID = g.newID()
	}
	started := g.now()
	rec := g.fallback.Record(traceID, tx, customer)
	rec.CreatedAt = g.now()
	if g.store != nil {
		trace := &types.AuditTrace{
			TraceID:       traceID,
			TransactionID: tx.ID,
			Source:        types.SourceFallback,
			Path: []types.StageRecord{{
				Stage: "fallback", StartedAt: started, FinishedAt: rec.CreatedAt, Status: types.StageOK,
			}},
			Signals:      rec.Signals,
			EvidenceRefs: []string{},
			StartedAt:    started,
			FinishedAt:   rec.CreatedAt,
		}
		if err := store.Record(g.store, &rec, trace); err != nil {
			g.logger.Error("persist fallback decision", "trace_id", traceID, "error", err)
		}
	}
	return api.NewResponse(&rec)
}
