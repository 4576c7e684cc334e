package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appctx "tombstone/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

var tracer = otel.Tracer("tombstone/http")

// Trace middleware opens a server span per request and exposes request and
// trace ids in the context and response headers. Without a configured
// tracer provider the span is a no-op and ids are generated.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", c.FullPath()),
				attribute.String("request.id", requestID),
			),
		)
		defer span.End()

		rt := appctx.NewRequestTrace(requestID, c.GetHeader(HeaderTraceID), span.SpanContext())

		c.Request = c.Request.WithContext(appctx.WithRequestTrace(ctx, rt))
		c.Set("trace_id", rt.TraceID)
		c.Set("request_id", rt.RequestID)
		c.Header(HeaderRequestID, rt.RequestID)
		c.Header(HeaderTraceID, rt.TraceID)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		}
	}
}
