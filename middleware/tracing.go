package middleware

import (
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common/ctxkey"
	"github.com/skybridge-ai/bedrock-gateway/common/helper"
	"github.com/skybridge-ai/bedrock-gateway/common/tracing"
	"github.com/skybridge-ai/bedrock-gateway/monitor"
)

// TracingMiddleware times every request and feeds the request metrics. The
// wrapped writer captures when the first response byte leaves, which for
// streams is the number callers actually feel.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := helper.Now()
		writer := &tracingResponseWriter{
			ResponseWriter: c.Writer,
			firstWrite:     true,
		}
		c.Writer = writer

		c.Next()

		elapsed := helper.Now().Sub(start)
		fields := tracing.WithTraceID(c,
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", elapsed),
		)
		if resolved := c.GetString(ctxkey.ResolvedModel); resolved != "" {
			fields = append(fields, zap.String("resolved_model", resolved))
		}
		if !writer.firstWriteAt.IsZero() {
			fields = append(fields, zap.Duration("ttfb", writer.firstWriteAt.Sub(start)))
		}
		gmw.GetLogger(c).Debug("request finished", fields...)

		// Only relay routes set a dialect; health checks and telemetry
		// stay out of the request metrics.
		if dialect := c.GetString(ctxkey.Dialect); dialect != "" {
			monitor.RecordRequest(dialect, c.GetString(ctxkey.RequestModel), c.Writer.Status(), elapsed)
		}
	}
}

// tracingResponseWriter records when the response starts flowing to the client.
type tracingResponseWriter struct {
	gin.ResponseWriter
	firstWrite   bool
	firstWriteAt time.Time
}

func (w *tracingResponseWriter) markFirstWrite() {
	if w.firstWrite {
		w.firstWrite = false
		w.firstWriteAt = helper.Now()
	}
}

func (w *tracingResponseWriter) Write(data []byte) (int, error) {
	w.markFirstWrite()
	return w.ResponseWriter.Write(data)
}

func (w *tracingResponseWriter) WriteHeader(statusCode int) {
	w.markFirstWrite()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *tracingResponseWriter) WriteString(s string) (int, error) {
	w.markFirstWrite()
	return w.ResponseWriter.WriteString(s)
}
