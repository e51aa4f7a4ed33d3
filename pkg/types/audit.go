package types

import "time"

// StageStatus is the terminal status of one stage in a run.
type StageStatus string

const (
	StageOK     StageStatus = "ok"
	StageFailed StageStatus = "failed"
)

// StageRecord logs one executed stage.
type StageRecord struct {
	Stage      string      `json:"stage"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Status     StageStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
}

// AuditTrace is the append-only account of one run: the stage path in
// completion order, the signals, and references to every piece of evidence.
type AuditTrace struct {
	TraceID       string        `json:"trace_id"`
	TransactionID string        `json:"transaction_id"`
	Source        Source        `json:"source"`
	Path          []StageRecord `json:"path"`
	Signals       SignalSet     `json:"signals"`
	EvidenceRefs  []string      `json:"evidence_refs"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Error         string        `json:"error,omitempty"`
}
