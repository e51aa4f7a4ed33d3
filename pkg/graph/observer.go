package graph

import (
	"context"
	"log/slog"
	"time"
)

// EventType classifies run events for filtering and routing.
type EventType string

const (
	EventStageEnter  EventType = "stage_enter"
	EventStageExit   EventType = "stage_exit"
	EventRunComplete EventType = "run_complete"
	EventRunError    EventType = "run_error"
)

// Event is a single observation from a graph run. Started and Elapsed are set
// on stage exits; Elapsed is also set on run completion and errors.
type Event struct {
	Type    EventType
	Graph   string
	Stage   string
	Started time.Time
	Elapsed time.Duration
	Error   error
}

// Observer receives events during a run. Stages on parallel branches emit
// concurrently, so implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// MultiObserver fans out events to multiple observers.
type MultiObserver []Observer

func (m MultiObserver) OnEvent(e Event) {
	for _, obs := range m {
		obs.OnEvent(e)
	}
}

// LogObserver writes run events as structured slog lines.
type LogObserver struct {
	Logger *slog.Logger
}

func (o *LogObserver) OnEvent(e Event) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("event", string(e.Type)),
		slog.String("graph", e.Graph),
	}
	if e.Stage != "" {
		attrs = append(attrs, slog.String("stage", e.Stage))
	}
	if e.Elapsed > 0 {
		attrs = append(attrs, slog.Duration("elapsed", e.Elapsed))
	}
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
		logger.LogAttrs(context.Background(), slog.LevelWarn, "graph", attrs...)
		return
	}
	level := slog.LevelDebug
	if e.Type == EventRunComplete {
		level = slog.LevelInfo
	}
	logger.LogAttrs(context.Background(), level, "graph", attrs...)
}

func composeObservers(base Observer, extra ...Observer) Observer {
	var all MultiObserver
	if base != nil {
		all = append(all, base)
	}
	for _, o := range extra {
		if o != nil {
			all = append(all, o)
		}
	}
	switch len(all) {
	case 0:
		return nil
	case 1:
		return all[0]
	}
	return all
}

// emitEvent is a helper to safely emit an event to a possibly-nil observer.
func emitEvent(obs Observer, e Event) {
	if obs != nil {
		obs.OnEvent(e)
	}
}
