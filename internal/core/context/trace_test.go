package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewRequestTrace_WithoutSpan(t *testing.T) {
	rt := NewRequestTrace("req-1", "upstream", trace.SpanContext{})

	assert.Equal(t, "req-1", rt.RequestID)
	assert.Equal(t, "upstream", rt.TraceID)
	assert.Empty(t, rt.SpanID)
	assert.Equal(t, []any{"request_id", "req-1", "trace_id", "upstream"}, rt.Fields())

	generated := NewRequestTrace("", "", trace.SpanContext{})
	assert.NotEmpty(t, generated.RequestID)
	assert.NotEmpty(t, generated.TraceID)
}

func TestNewRequestTrace_FromSpan(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})

	rt := NewRequestTrace("req-1", "ignored", sc)
	assert.Equal(t, sc.TraceID().String(), rt.TraceID)
	assert.Equal(t, sc.SpanID().String(), rt.SpanID)
	assert.Equal(t, []any{"request_id", "req-1"}, rt.Fields())
}

func TestRequestTraceContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, RequestTraceFrom(ctx))
	assert.Nil(t, RequestTraceFrom(ctx).Fields())

	rt := NewRequestTrace("req-1", "", trace.SpanContext{})
	got := RequestTraceFrom(WithRequestTrace(ctx, rt))
	require.NotNil(t, got)
	assert.Same(t, rt, got)
}
