package controller

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/pkoukk/tiktoken-go"

	"github.com/skybridge-ai/bedrock-gateway/common"
	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/ctxkey"
	"github.com/skybridge-ai/bedrock-gateway/common/logger"
	"github.com/skybridge-ai/bedrock-gateway/middleware"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

const (
	// Every message follows <|start|>{role}\n{content}<|end|>\n.
	tokensPerMessage = 3
	// imageTokens is the flat charge for an image block. The upstream bills
	// roughly (width*height)/750; most inlined images land near this.
	imageTokens = 1500
)

var (
	tokenEncoderOnce sync.Once
	tokenEncoder     *tiktoken.Tiktoken
)

// getTokenEncoder lazily loads the cl100k_base encoding. Deployments without
// the encoder files fall back to the character heuristic; set
// TIKTOKEN_CACHE_DIR to use pre-downloaded files offline.
func getTokenEncoder() *tiktoken.Tiktoken {
	tokenEncoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logger.Logger.Warn("tiktoken encoder unavailable, estimating tokens from character count",
				zap.Error(err))
			return
		}
		tokenEncoder = enc
	})
	return tokenEncoder
}

func countTextTokens(text string) int {
	if text == "" {
		return 0
	}
	if !config.ApproximateTokenEnabled {
		if enc := getTokenEncoder(); enc != nil {
			return len(enc.Encode(text, nil, nil))
		}
	}
	return int(float64(len(text)) * 0.38)
}

// CountClaudeTokens handles POST /v1/messages/count_tokens. The estimate is
// computed locally; the upstream is never called.
func CountClaudeTokens(c *gin.Context) {
	c.Set(ctxkey.Dialect, dialectAnthropic)

	var req relaymodel.ClaudeRequest
	if err := common.UnmarshalBodyReusable(c, &req); err != nil {
		middleware.AbortWithError(c, relaymodel.NewInvalidRequestError(err.Error()))
		return
	}
	if req.Model == "" {
		middleware.AbortWithError(c, relaymodel.NewInvalidRequestError("model is required"))
		return
	}
	if len(req.Messages) == 0 {
		middleware.AbortWithError(c, relaymodel.NewInvalidRequestError("messages is required"))
		return
	}
	c.Set(ctxkey.RequestModel, req.Model)

	c.JSON(http.StatusOK, relaymodel.ClaudeTokenCount{InputTokens: estimateInputTokens(&req)})
}

// estimateInputTokens walks the loosely typed request payload: system and
// message text, tool invocations and results, a flat charge per image, and
// the serialized tool declarations.
func estimateInputTokens(req *relaymodel.ClaudeRequest) int {
	total := countTextTokens(systemText(req.System))

	for _, msg := range req.Messages {
		total += tokensPerMessage
		total += contentTokens(msg.Content)
	}

	for _, tool := range req.Tools {
		total += countTextTokens(tool.Name)
		total += countTextTokens(tool.Description)
		if tool.InputSchema != nil {
			if schema, err := json.Marshal(tool.InputSchema); err == nil {
				total += countTextTokens(string(schema))
			}
		}
	}
	return total
}

// systemText flattens the system field, which arrives as a plain string or an
// array of text blocks.
func systemText(system any) string {
	switch v := system.(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, item := range v {
			if block, ok := item.(map[string]any); ok {
				if text, ok := block["text"].(string); ok {
					sb.WriteString(text)
				}
			}
		}
		return sb.String()
	}
	return ""
}

func contentTokens(content any) int {
	switch v := content.(type) {
	case string:
		return countTextTokens(v)
	case []any:
		total := 0
		for _, item := range v {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			switch block["type"] {
			case "text":
				if text, ok := block["text"].(string); ok {
					total += countTextTokens(text)
				}
			case "thinking":
				if text, ok := block["thinking"].(string); ok {
					total += countTextTokens(text)
				}
			case "image":
				total += imageTokens
			case "tool_use":
				if name, ok := block["name"].(string); ok {
					total += countTextTokens(name)
				}
				if block["input"] != nil {
					if input, err := json.Marshal(block["input"]); err == nil {
						total += countTextTokens(string(input))
					}
				}
			case "tool_result":
				total += contentTokens(block["content"])
			}
		}
		return total
	}
	return 0
}
