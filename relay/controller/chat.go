package controller

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common"
	"github.com/skybridge-ai/bedrock-gateway/common/ctxkey"
	"github.com/skybridge-ai/bedrock-gateway/common/graceful"
	"github.com/skybridge-ai/bedrock-gateway/middleware"
	"github.com/skybridge-ai/bedrock-gateway/relay/adaptor/openai"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// RelayChatCompletions handles POST /v1/chat/completions, unary and streaming.
func RelayChatCompletions(c *gin.Context) {
	done := graceful.BeginRequest()
	defer done()

	lg := gmw.GetLogger(c)
	c.Set(ctxkey.Dialect, dialectOpenAI)

	var chatReq relaymodel.ChatRequest
	if err := common.UnmarshalBodyReusable(c, &chatReq); err != nil {
		middleware.AbortWithError(c, relaymodel.NewInvalidRequestError(err.Error()))
		return
	}
	c.Set(ctxkey.RequestModel, chatReq.Model)

	req, err := openai.ConvertRequest(&chatReq)
	if err != nil {
		middleware.AbortWithError(c, relaymodel.NewInvalidRequestError(err.Error()))
		return
	}
	resolveModel(c, req)
	lg.Debug("relaying openai-dialect request",
		zap.String("model", req.ClientModel),
		zap.String("upstream_model", req.Model),
		zap.Bool("stream", req.Stream))

	if req.Stream {
		relayStream(c, req, openai.NewChunkWriter(c, req.ClientModel))
		return
	}
	relayUnary(c, req, func(resp *relaymodel.Response) {
		c.JSON(http.StatusOK, openai.ConvertResponse(resp))
	})
}
