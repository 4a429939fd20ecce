package tracing

import (
	"context"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common/helper"
)

// GetTraceID returns the trace identifier assigned to this request: the
// inbound x-trace-id when the caller supplied one, otherwise the generated
// request id. x-request-id and x-trace-id always carry the same value.
func GetTraceID(c *gin.Context) string {
	if id := c.GetString(helper.RequestIdKey); id != "" {
		return id
	}
	// Request-id middleware did not run (bare handler in tests); fall back to
	// the logger middleware's trace.
	if traceID, err := gmw.TraceID(c); err == nil {
		return traceID.String()
	}
	return ""
}

// GetTraceIDFromContext extracts the trace ID when only a standard context is
// available, e.g. inside the post-response accounting goroutine.
func GetTraceIDFromContext(ctx context.Context) string {
	if ginCtx, ok := gmw.GetGinCtxFromStdCtx(ctx); ok {
		return GetTraceID(ginCtx)
	}
	return ""
}

// WithTraceID adds trace ID to structured logging fields
func WithTraceID(c *gin.Context, fields ...zap.Field) []zap.Field {
	traceID := GetTraceID(c)
	if traceID == "" {
		return fields
	}

	traceField := zap.String("trace_id", traceID)
	return append([]zap.Field{traceField}, fields...)
}

// WithTraceIDFromContext adds trace ID to structured logging fields from context
func WithTraceIDFromContext(ctx context.Context, fields ...zap.Field) []zap.Field {
	traceID := GetTraceIDFromContext(ctx)
	if traceID == "" {
		return fields
	}

	traceField := zap.String("trace_id", traceID)
	return append([]zap.Field{traceField}, fields...)
}
