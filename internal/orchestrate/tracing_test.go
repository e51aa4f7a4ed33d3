package orchestrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"riskgraph/internal/reasoning/reasoningtest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestTracing_OneSpanPerStageUnderRunSpan(t *testing.T) {
	sr := recordSpans(t)
	backend := &reasoningtest.Static{Text: "generated text", Structured: verdict("BLOCK", 0.9)}
	e := newTestEngine(t, backend, &fakeEvidence{items: internalItems()}, &fakeEvidence{items: externalItems()})

	tx, cust := riskyInput()
	res, err := e.Run(context.Background(), tx, cust)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	spans := sr.Ended()
	var run sdktrace.ReadOnlySpan
	stages := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		switch {
		case s.Name() == "pipeline.run":
			run = s
		case strings.HasPrefix(s.Name(), "stage."):
			stages[strings.TrimPrefix(s.Name(), "stage.")] = s
		}
	}
	if run == nil {
		t.Fatal("no pipeline.run span")
	}
	if len(stages) != 11 {
		t.Fatalf("stage spans = %d, want 11", len(stages))
	}
	for name, s := range stages {
		if s.Parent().SpanID() != run.SpanContext().SpanID() {
			t.Errorf("stage %s is not a child of the run span", name)
		}
		if s.Status().Code != codes.Ok {
			t.Errorf("stage %s status = %v", name, s.Status().Code)
		}
	}
	found := false
	for _, kv := range run.Attributes() {
		if string(kv.Key) == "riskgraph.trace_id" && kv.Value.AsString() == res.TraceID {
			found = true
		}
	}
	if !found {
		t.Error("run span lacks riskgraph.trace_id")
	}
}

func TestTracing_FailedStageMarksSpans(t *testing.T) {
	sr := recordSpans(t)
	e := newTestEngine(t, &reasoningtest.Static{Err: errors.New("throttled")}, &fakeEvidence{}, &fakeEvidence{})

	tx, cust := riskyInput()
	if _, err := e.Run(context.Background(), tx, cust); err == nil {
		t.Fatal("expected failure")
	}
	var runFailed, stageFailed bool
	for _, s := range sr.Ended() {
		if s.Status().Code != codes.Error {
			continue
		}
		switch s.Name() {
		case "pipeline.run":
			runFailed = true
		case "stage." + StageAggregation:
			stageFailed = true
		}
	}
	if !runFailed || !stageFailed {
		t.Errorf("run failed=%v, aggregation failed=%v", runFailed, stageFailed)
	}
}
