package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelListener turns lifecycle events into OpenTelemetry spans, one span
// per event, tagged with the execution/workflow/node identifiers and any
// Meta fields as span attributes. Errors recorded under Meta["error"] mark
// the span as failed.
type OTelListener struct {
	tracer trace.Tracer
}

// NewOTelListener creates a listener that records spans via tracer.
func NewOTelListener(tracer trace.Tracer) *OTelListener {
	return &OTelListener{tracer: tracer}
}

// OnEvent implements Listener.
func (o *OTelListener) OnEvent(event Event) {
	_, span := o.tracer.Start(context.Background(), string(event.Kind))
	defer span.End()

	span.SetAttributes(
		attribute.String("execution_id", event.ExecutionID),
		attribute.String("workflow_id", event.WorkflowID),
		attribute.String("node_id", event.NodeID),
	)
	for k, v := range event.Meta {
		span.SetAttributes(attribute.String(k, toString(v)))
	}
	if errVal, ok := event.Meta["error"]; ok {
		span.SetStatus(codes.Error, toString(errVal))
	}
}

// Flush is a no-op; spans are exported as they end.
func (o *OTelListener) Flush(_ context.Context) error {
	return nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
