package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common/helper"
)

// TraceIdKey is the response header mirroring the request id, honored on the
// way in so callers can stitch gateway logs to their own.
const TraceIdKey = "x-trace-id"

func RequestId() func(c *gin.Context) {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.Request.Header.Get(TraceIdKey))
		if id == "" {
			id = helper.GenRequestID()
		}
		c.Set(helper.RequestIdKey, id)
		c.Header(helper.RequestIdKey, id)
		c.Header(TraceIdKey, id)
		c.Next()
	}
}
