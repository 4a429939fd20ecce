package router

import (
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/middleware"
	"github.com/skybridge-ai/bedrock-gateway/relay/controller"
)

// SetRelayRouter wires the inference endpoints. Both protocol dialects share
// one group so authentication and rate limiting treat them identically; model
// listing rides in the same group because clients probe it with the same key.
func SetRelayRouter(server *gin.Engine) {
	server.Use(middleware.CORS())

	relayV1Router := server.Group("/v1")
	relayV1Router.Use(middleware.RelayPanicRecover(), middleware.APIKeyAuth(), middleware.RateLimit())
	{
		// https://docs.anthropic.com/en/api/messages
		relayV1Router.POST("/messages", controller.RelayClaudeMessages)
		relayV1Router.POST("/messages/count_tokens", controller.CountClaudeTokens)
		// https://platform.openai.com/docs/api-reference/chat
		relayV1Router.POST("/chat/completions", controller.RelayChatCompletions)
		relayV1Router.GET("/models", controller.ListModels)
		relayV1Router.GET("/models/:model", controller.RetrieveModel)
	}
}
