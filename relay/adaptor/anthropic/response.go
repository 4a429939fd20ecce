package anthropic

import (
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// ConvertResponse renders a provider-neutral response as an Anthropic
// Messages body. Model carries the name the client asked for, not the
// resolved upstream identifier.
func ConvertResponse(resp *relaymodel.Response) *relaymodel.ClaudeResponse {
	out := &relaymodel.ClaudeResponse{
		ID:      resp.ID,
		Type:    "message",
		Role:    relaymodel.RoleAssistant,
		Model:   resp.Model,
		Content: make([]relaymodel.ClaudeContentBlock, 0, len(resp.Content)),
		Usage:   resp.Usage,
	}
	if resp.StopReason != "" {
		reason := resp.StopReason.Anthropic()
		out.StopReason = &reason
	}
	for _, block := range resp.Content {
		if converted := convertContentBlock(block); converted != nil {
			out.Content = append(out.Content, *converted)
		}
	}
	return out
}

// convertContentBlock maps one canonical block onto the Anthropic wire shape.
// Kinds with no response-side representation come back nil.
func convertContentBlock(block relaymodel.ContentBlock) *relaymodel.ClaudeContentBlock {
	switch block.Kind {
	case relaymodel.BlockText:
		text := block.Text
		return &relaymodel.ClaudeContentBlock{Type: "text", Text: &text}
	case relaymodel.BlockToolUse:
		input := block.InputJSON
		if len(input) == 0 {
			input = []byte("{}")
		}
		return &relaymodel.ClaudeContentBlock{
			Type:  "tool_use",
			ID:    block.ToolUseID,
			Name:  block.ToolName,
			Input: input,
		}
	case relaymodel.BlockThinking:
		text := block.Text
		return &relaymodel.ClaudeContentBlock{Type: "thinking", Thinking: &text}
	}
	return nil
}
