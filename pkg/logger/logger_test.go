package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "tombstone/internal/core/context"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{zap.New(core).Sugar()}, logs
}

func TestFromContext_RequestTrace(t *testing.T) {
	l, logs := observed()
	rt := appctx.NewRequestTrace("req-1", "trace-1", trace.SpanContext{})
	ctx := appctx.WithRequestTrace(WithLogger(context.Background(), l), rt)

	Info(ctx, "restored", "entity", "warehouse")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "warehouse", fields["entity"])
}

func TestFromContext_SpanIDs(t *testing.T) {
	l, logs := observed()
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: trace.TraceID{7}, SpanID: trace.SpanID{9}})
	ctx := trace.ContextWithSpanContext(WithLogger(context.Background(), l), sc)
	ctx = appctx.WithRequestTrace(ctx, appctx.NewRequestTrace("req-2", "", sc))

	Warn(ctx, "halted")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, sc.TraceID().String(), fields["trace_id"])
	assert.Equal(t, sc.SpanID().String(), fields["span_id"])
	assert.Equal(t, "req-2", fields["request_id"])
}

func TestWithComponent(t *testing.T) {
	l, logs := observed()
	ctx := WithLogger(context.Background(), l.WithComponent("schema-listener"))

	Debug(ctx, "notification")

	assert.Equal(t, "schema-listener", logs.All()[0].ContextMap()["component"])
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "chatty", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}
