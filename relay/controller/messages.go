// Package controller hosts the relay handlers: one per client dialect, plus
// the local count_tokens and models endpoints. Translation lives in the
// adaptor packages; handlers wire parse, resolve, upstream call and
// accounting together.
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
	"github.com/skybridge-ai/bedrock-gateway/relay/adaptor/anthropic"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// RelayClaudeMessages handles POST /v1/messages, unary and streaming.
func RelayClaudeMessages(c *gin.Context) {
	done := graceful.BeginRequest()
	defer done()

	lg := gmw.GetLogger(c)
	c.Set(ctxkey.Dialect, dialectAnthropic)

	var claudeReq relaymodel.ClaudeRequest
	if err := common.UnmarshalBodyReusable(c, &claudeReq); err != nil {
		middleware.AbortWithError(c, relaymodel.NewInvalidRequestError(err.Error()))
		return
	}
	c.Set(ctxkey.RequestModel, claudeReq.Model)

	req, err := anthropic.ConvertRequest(&claudeReq)
	if err != nil {
		middleware.AbortWithError(c, relaymodel.NewInvalidRequestError(err.Error()))
		return
	}
	resolveModel(c, req)
	lg.Debug("relaying anthropic-dialect request",
		zap.String("model", req.ClientModel),
		zap.String("upstream_model", req.Model),
		zap.Bool("stream", req.Stream))

	if req.Stream {
		relayStream(c, req, anthropic.NewStreamWriter(c, req.ClientModel))
		return
	}
	relayUnary(c, req, func(resp *relaymodel.Response) {
		c.JSON(http.StatusOK, anthropic.ConvertResponse(resp))
	})
}
