package mcp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"riskgraph/internal/logging"
)

func TestWatchPID_CancelsWhenParentChanges(t *testing.T) {
	old := ParentPollInterval
	ParentPollInterval = 5 * time.Millisecond
	t.Cleanup(func() { ParentPollInterval = old })

	var pid atomic.Int32
	pid.Store(100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchPID(ctx, logging.Discard(), cancel, func() int { return int(pid.Load()) })
	pid.Store(1)

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not cancel after parent change")
	}
}

func TestWatchPID_StopsWhenContextCanceled(t *testing.T) {
	old := ParentPollInterval
	ParentPollInterval = 5 * time.Millisecond
	t.Cleanup(func() { ParentPollInterval = old })

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	watchPID(ctx, logging.Discard(), func() { t.Error("cancel must not be called") }, func() int {
		calls.Add(1)
		return 7
	})
	cancel()
	time.Sleep(30 * time.Millisecond)
	n := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != n {
		t.Error("watcher kept polling after context cancel")
	}
}
