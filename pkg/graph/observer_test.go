package graph

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// collector records every event it receives.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) OnEvent(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *collector) EventsOfType(typ EventType) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestMultiObserver_FansOut(t *testing.T) {
	a, b := &collector{}, &collector{}
	var calls int
	m := MultiObserver{a, b, ObserverFunc(func(Event) { calls++ })}
	m.OnEvent(Event{Type: EventStageEnter})
	if len(a.Events()) != 1 || len(b.Events()) != 1 || calls != 1 {
		t.Error("expected every observer to receive the event")
	}
}

func TestLogObserver_WarnsOnError(t *testing.T) {
	var buf bytes.Buffer
	obs := &LogObserver{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	obs.OnEvent(Event{Type: EventStageExit, Graph: "g", Stage: "arbiter", Error: errors.New("timeout")})
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "stage=arbiter") || !strings.Contains(out, "error=timeout") {
		t.Errorf("unexpected log line: %s", out)
	}
}
