package middleware

import (
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common/helper"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// AbortWithClaudeError rejects the request with the Anthropic error envelope.
// Authentication failures always use this shape, whatever route they arrive
// on: clients of both dialects key off the HTTP status and error.type, which
// are identical across envelopes.
func AbortWithClaudeError(c *gin.Context, e *relaymodel.ErrorWithStatusCode) {
	logAbort(c, e)
	c.JSON(e.StatusCode, relaymodel.ClaudeErrorResponse{
		Type: "error",
		Error: relaymodel.ClaudeError{
			Type:    e.Type,
			Message: helper.MessageWithRequestId(e.Message, c.GetString(helper.RequestIdKey)),
		},
	})
	c.Abort()
}

// AbortWithError rejects the request with the envelope matching the route's
// dialect: OpenAI-shaped on /v1/chat/*, Anthropic-shaped everywhere else.
func AbortWithError(c *gin.Context, e *relaymodel.ErrorWithStatusCode) {
	if !isOpenAIRoute(c) {
		AbortWithClaudeError(c, e)
		return
	}
	logAbort(c, e)
	wrapped := e.Error
	wrapped.Message = helper.MessageWithRequestId(e.Message, c.GetString(helper.RequestIdKey))
	c.JSON(e.StatusCode, relaymodel.OpenAIErrorResponse{Error: wrapped})
	c.Abort()
}

func logAbort(c *gin.Context, e *relaymodel.ErrorWithStatusCode) {
	logger := gmw.GetLogger(c)
	fields := []zap.Field{
		zap.Int("status_code", e.StatusCode),
		zap.String("error_type", e.Type),
		zap.String("message", e.Message),
	}
	if e.RawError != nil {
		fields = append(fields, zap.Error(e.RawError))
	}
	if e.StatusCode >= 500 {
		logger.Error("request aborted", fields...)
	} else {
		logger.Warn("request aborted", fields...)
	}
}

func isOpenAIRoute(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/v1/chat/")
}
