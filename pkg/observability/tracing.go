package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/roast/pkg/errors"
)

// Span represents a tracing span whose attributes are set in one batch
// when it ends.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan starts a span named operationName.
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operationName)
	return ctx, &Span{span: span, startTime: time.Now()}
}

// SetAttribute adds an attribute to the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue
	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	case []string:
		attr = attribute.StringSlice(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}
	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span.
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Duration returns the time since the span started.
func (s *Span) Duration() time.Duration {
	return time.Since(s.startTime)
}

// End records err, if any, as the span status and ends the span.
func (s *Span) End(err error) {
	if err != nil {
		s.attributes = append(s.attributes,
			attribute.String("error.kind", string(errors.TypeOf(err))),
			attribute.String("error.message", err.Error()))
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// OperationTracer starts spans for one kind of roast operation, such as
// map-single or tabulate.
type OperationTracer struct {
	operation string
}

// NewOperationTracer creates a tracer for operation.
func NewOperationTracer(operation string) *OperationTracer {
	return &OperationTracer{operation: operation}
}

// StartSpan starts a span named "operation.step".
func (ot *OperationTracer) StartSpan(ctx context.Context, step string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, ot.operation+"."+step)
	span.SetAttribute("roast.operation", ot.operation)
	span.SetAttribute("roast.step", step)
	return ctx, span
}

// TraceFile runs fn inside a span describing the processing of one input
// file and returns its error.
func (ot *OperationTracer) TraceFile(ctx context.Context, file string, fn func(context.Context) error) error {
	ctx, span := ot.StartSpan(ctx, "file")
	span.SetAttribute("roast.file", file)
	err := fn(ctx)
	span.End(err)
	return err
}
