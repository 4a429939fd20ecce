package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common"
	"github.com/skybridge-ai/bedrock-gateway/common/logger"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// RelayPanicRecover turns a handler panic into a 500 api_error in the
// dialect's envelope instead of a dropped connection.
func RelayPanicRecover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				body, _ := common.GetRequestBody(c)
				logger.Logger.Error("panic detected",
					zap.Any("panic", err),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("request_body", body))
				AbortWithError(c, &relaymodel.ErrorWithStatusCode{
					Error: relaymodel.Error{
						Message: fmt.Sprintf("internal error: %v", err),
						Type:    relaymodel.ErrTypeAPI,
					},
					StatusCode: http.StatusInternalServerError,
				})
			}
		}()
		c.Next()
	}
}
