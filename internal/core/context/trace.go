// Package context carries request correlation data through a context.
package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestTrace correlates a request across logs, spans and responses.
type RequestTrace struct {
	RequestID string
	TraceID   string
	SpanID    string
}

type requestTraceKey struct{}

// NewRequestTrace builds a RequestTrace from the span in sc. When no span is
// recorded, fallbackTraceID (or a generated id) is used instead.
func NewRequestTrace(requestID, fallbackTraceID string, sc trace.SpanContext) *RequestTrace {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	rt := &RequestTrace{RequestID: requestID}
	if sc.IsValid() {
		rt.TraceID = sc.TraceID().String()
		rt.SpanID = sc.SpanID().String()
		return rt
	}
	rt.TraceID = fallbackTraceID
	if rt.TraceID == "" {
		rt.TraceID = uuid.New().String()
	}
	return rt
}

// WithRequestTrace stores rt in ctx.
func WithRequestTrace(ctx context.Context, rt *RequestTrace) context.Context {
	return context.WithValue(ctx, requestTraceKey{}, rt)
}

// RequestTraceFrom returns the RequestTrace stored in ctx, or nil.
func RequestTraceFrom(ctx context.Context) *RequestTrace {
	rt, _ := ctx.Value(requestTraceKey{}).(*RequestTrace)
	return rt
}

// Fields returns the ids as logger key/value pairs.
func (rt *RequestTrace) Fields() []any {
	if rt == nil {
		return nil
	}
	fields := []any{"request_id", rt.RequestID}
	if rt.SpanID == "" {
		fields = append(fields, "trace_id", rt.TraceID)
	}
	return fields
}
