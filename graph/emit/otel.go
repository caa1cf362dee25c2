package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter converts events into OpenTelemetry spans, one span per
// event. Events represent instants, so spans are ended immediately; the
// span processor handles batching and export.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an emitter over the given tracer, typically
// otel.Tracer("tradingagents").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit records the event as a span named after the event kind. An "error"
// meta entry marks the span status as error.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("run.id", event.RunID),
		attribute.Int("run.step", event.Step),
		attribute.String("node.id", event.NodeID),
	)
	for key, value := range event.Meta {
		span.SetAttributes(metaAttribute(key, value))
	}

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

func metaAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String("meta."+key, v)
	case bool:
		return attribute.Bool("meta."+key, v)
	case int:
		return attribute.Int("meta."+key, v)
	case int64:
		return attribute.Int64("meta."+key, v)
	case float64:
		return attribute.Float64("meta."+key, v)
	default:
		return attribute.String("meta."+key, fmt.Sprintf("%v", v))
	}
}
