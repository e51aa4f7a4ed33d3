package orchestrate

import (
	"sync"

	"riskgraph/pkg/graph"
	"riskgraph/pkg/types"
)

// auditRecorder is a per-run observer that appends every finished stage to
// the run's audit path, in completion order.
type auditRecorder struct {
	mu    sync.Mutex
	trace types.AuditTrace
}

func newAuditRecorder(trace types.AuditTrace) *auditRecorder {
	trace.Path = []types.StageRecord{}
	return &auditRecorder{trace: trace}
}

func (r *auditRecorder) OnEvent(e graph.Event) {
	if e.Type != graph.EventStageExit {
		return
	}
	rec := types.StageRecord{
		Stage:      e.Stage,
		StartedAt:  e.Started,
		FinishedAt: e.Started.Add(e.Elapsed),
		Status:     types.StageOK,
	}
	if e.Error != nil {
		rec.Status = types.StageFailed
		rec.Error = e.Error.Error()
	}
	r.mu.Lock()
	r.trace.Path = append(r.trace.Path, rec)
	r.mu.Unlock()
}

// snapshot returns a copy of the trace.
func (r *auditRecorder) snapshot() types.AuditTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.trace
	out.Path = append([]types.StageRecord(nil), r.trace.Path...)
	return out
}
