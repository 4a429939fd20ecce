package openai

import (
	"strings"
	"time"

	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// ConvertResponse renders the provider-neutral reply as a Chat Completions
// body. Text blocks concatenate into the message content; thinking blocks
// have no wire equivalent here and are dropped.
func ConvertResponse(resp *relaymodel.Response) *relaymodel.ChatResponse {
	message := relaymodel.ChatMessage{Role: relaymodel.RoleAssistant}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Kind {
		case relaymodel.BlockText:
			text.WriteString(block.Text)
		case relaymodel.BlockToolUse:
			arguments := string(block.InputJSON)
			if arguments == "" {
				arguments = "{}"
			}
			message.ToolCalls = append(message.ToolCalls, relaymodel.Tool{
				Id:   block.ToolUseID,
				Type: "function",
				Function: &relaymodel.Function{
					Name:      block.ToolName,
					Arguments: arguments,
				},
			})
		}
	}
	if text.Len() > 0 {
		message.Content = text.String()
	}

	return &relaymodel.ChatResponse{
		Id:      relaymodel.NewChatCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []relaymodel.ChatChoice{{
			Index:        0,
			Message:      message,
			FinishReason: resp.StopReason.OpenAI(),
		}},
		Usage: resp.Usage.OpenAI(),
	}
}
