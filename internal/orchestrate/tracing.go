package orchestrate

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "riskgraph/orchestrate"

// tracer resolves the global provider on every call, so a provider
// registered after startup is honoured. The default is a no-op.
func tracer() trace.Tracer { return otel.Tracer(tracerName) }

func startRunSpan(ctx context.Context, traceID, transactionID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("riskgraph.trace_id", traceID),
		attribute.String("riskgraph.transaction_id", transactionID),
	))
}

func traced(name string, run func(context.Context, *PipelineState) error) func(context.Context, *PipelineState) error {
	return func(ctx context.Context, st *PipelineState) error {
		ctx, span := tracer().Start(ctx, "stage."+name, trace.WithAttributes(
			attribute.String("riskgraph.stage", name),
			attribute.String("riskgraph.trace_id", st.TraceID),
		))
		defer span.End()
		err := run(ctx, st)
		endSpan(span, err)
		return err
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
