// Package anthropic translates between the Anthropic Messages dialect and
// the provider-neutral relay model.
package anthropic

import (
	"encoding/base64"
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// ConvertRequest normalizes an Anthropic Messages request into the
// provider-neutral form. Validation failures describe the offending field or
// index; the controller renders them as invalid-request errors.
func ConvertRequest(req *relaymodel.ClaudeRequest) (*relaymodel.Request, error) {
	if req.Model == "" {
		return nil, errors.New("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages is required")
	}
	if req.MaxTokens < 1 {
		return nil, errors.New("max_tokens must be at least 1")
	}

	system, err := parseSystem(req.System)
	if err != nil {
		return nil, err
	}

	out := &relaymodel.Request{
		Model:         req.Model,
		ClientModel:   req.Model,
		System:        system,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
		Stream:        req.Stream != nil && *req.Stream,
	}

	for i, msg := range req.Messages {
		if msg.Role != relaymodel.RoleUser && msg.Role != relaymodel.RoleAssistant {
			return nil, errors.Errorf("messages[%d]: role must be user or assistant, got %q", i, msg.Role)
		}
		blocks, err := parseContent(msg.Content, i)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, relaymodel.Message{Role: msg.Role, Content: blocks})
	}

	for i, tool := range req.Tools {
		if tool.Name == "" {
			return nil, errors.Errorf("tools[%d]: name is required", i)
		}
		if tool.InputSchema == nil {
			return nil, errors.Errorf("tools[%d]: input_schema is required", i)
		}
		schema, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, errors.Wrapf(err, "tools[%d]: input_schema", i)
		}
		out.Tools = append(out.Tools, relaymodel.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	if req.ToolChoice != nil {
		choice, err := parseToolChoice(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		out.ToolChoice = choice
	}

	if req.Thinking != nil && req.Thinking.Type == "enabled" {
		out.Thinking = &relaymodel.ThinkingConfig{
			Enabled:      true,
			BudgetTokens: req.Thinking.BudgetTokens,
		}
	}

	return out, nil
}

// parseSystem flattens the system field, which arrives as a plain string or
// as an array of text blocks. Multiple blocks concatenate in order.
func parseSystem(system any) (string, error) {
	switch v := system.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []any:
		var parts []string
		for i, item := range v {
			block, ok := item.(map[string]any)
			if !ok {
				return "", errors.Errorf("system[%d]: expected a text block object", i)
			}
			if t, _ := block["type"].(string); t != "text" {
				return "", errors.Errorf("system[%d]: unsupported block type %q", i, block["type"])
			}
			text, _ := block["text"].(string)
			parts = append(parts, text)
		}
		return joinSystem(parts), nil
	}
	return "", errors.New("system must be a string or an array of text blocks")
}

func joinSystem(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n\n"
		}
		out += p
	}
	return out
}

// parseContent normalizes a message content payload, which is either a plain
// string or an ordered array of typed block objects.
func parseContent(content any, msgIdx int) ([]relaymodel.ContentBlock, error) {
	switch v := content.(type) {
	case nil:
		return nil, errors.Errorf("messages[%d]: content is required", msgIdx)
	case string:
		if v == "" {
			return nil, nil
		}
		return []relaymodel.ContentBlock{relaymodel.TextBlock(v)}, nil
	case []any:
		blocks := make([]relaymodel.ContentBlock, 0, len(v))
		for i, item := range v {
			raw, ok := item.(map[string]any)
			if !ok {
				return nil, errors.Errorf("messages[%d].content[%d]: expected a block object", msgIdx, i)
			}
			block, keep, err := parseBlock(raw, msgIdx, i)
			if err != nil {
				return nil, err
			}
			if keep {
				blocks = append(blocks, block)
			}
		}
		return blocks, nil
	}
	return nil, errors.Errorf("messages[%d]: content must be a string or an array of blocks", msgIdx)
}

func parseBlock(raw map[string]any, msgIdx, blockIdx int) (relaymodel.ContentBlock, bool, error) {
	blockType, _ := raw["type"].(string)
	switch blockType {
	case "text":
		text, _ := raw["text"].(string)
		return relaymodel.TextBlock(text), true, nil

	case "image":
		mediaType, data, err := parseBase64Source(raw["source"])
		if err != nil {
			return relaymodel.ContentBlock{}, false, errors.Wrapf(err, "messages[%d].content[%d]", msgIdx, blockIdx)
		}
		return relaymodel.ImageBlock(mediaType, data), true, nil

	case "document":
		mediaType, data, err := parseBase64Source(raw["source"])
		if err != nil {
			return relaymodel.ContentBlock{}, false, errors.Wrapf(err, "messages[%d].content[%d]", msgIdx, blockIdx)
		}
		format, err := documentFormatFromMediaType(mediaType)
		if err != nil {
			return relaymodel.ContentBlock{}, false, errors.Wrapf(err, "messages[%d].content[%d]", msgIdx, blockIdx)
		}
		title, _ := raw["title"].(string)
		return relaymodel.DocumentBlock(format, title, data), true, nil

	case "tool_use":
		id, _ := raw["id"].(string)
		name, _ := raw["name"].(string)
		if id == "" || name == "" {
			return relaymodel.ContentBlock{}, false, errors.Errorf(
				"messages[%d].content[%d]: tool_use requires id and name", msgIdx, blockIdx)
		}
		input, err := marshalToolInput(raw["input"])
		if err != nil {
			return relaymodel.ContentBlock{}, false, errors.Wrapf(err, "messages[%d].content[%d]", msgIdx, blockIdx)
		}
		return relaymodel.ToolUseBlock(id, name, input), true, nil

	case "tool_result":
		toolUseID, _ := raw["tool_use_id"].(string)
		if toolUseID == "" {
			return relaymodel.ContentBlock{}, false, errors.Errorf(
				"messages[%d].content[%d]: tool_result requires tool_use_id", msgIdx, blockIdx)
		}
		nested, err := parseToolResultContent(raw["content"], msgIdx, blockIdx)
		if err != nil {
			return relaymodel.ContentBlock{}, false, err
		}
		isError, _ := raw["is_error"].(bool)
		return relaymodel.ToolResultBlock(toolUseID, nested, isError), true, nil

	case "thinking":
		text, _ := raw["thinking"].(string)
		return relaymodel.ThinkingBlock(text), true, nil

	case "redacted_thinking":
		// Opaque to every downstream dialect; dropped.
		return relaymodel.ContentBlock{}, false, nil
	}

	return relaymodel.ContentBlock{}, false, errors.Errorf(
		"messages[%d].content[%d]: unsupported content block type %q", msgIdx, blockIdx, blockType)
}

// parseToolResultContent handles the tool_result content payload: a plain
// string, or an array of text and image blocks.
func parseToolResultContent(content any, msgIdx, blockIdx int) ([]relaymodel.ContentBlock, error) {
	switch v := content.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []relaymodel.ContentBlock{relaymodel.TextBlock(v)}, nil
	case []any:
		blocks := make([]relaymodel.ContentBlock, 0, len(v))
		for i, item := range v {
			raw, ok := item.(map[string]any)
			if !ok {
				return nil, errors.Errorf("messages[%d].content[%d].content[%d]: expected a block object", msgIdx, blockIdx, i)
			}
			switch t, _ := raw["type"].(string); t {
			case "text":
				text, _ := raw["text"].(string)
				blocks = append(blocks, relaymodel.TextBlock(text))
			case "image":
				mediaType, data, err := parseBase64Source(raw["source"])
				if err != nil {
					return nil, errors.Wrapf(err, "messages[%d].content[%d].content[%d]", msgIdx, blockIdx, i)
				}
				blocks = append(blocks, relaymodel.ImageBlock(mediaType, data))
			default:
				return nil, errors.Errorf(
					"messages[%d].content[%d].content[%d]: unsupported tool_result block type %q", msgIdx, blockIdx, i, t)
			}
		}
		return blocks, nil
	}
	return nil, errors.Errorf("messages[%d].content[%d]: tool_result content must be a string or an array", msgIdx, blockIdx)
}

// parseBase64Source decodes an inline base64 source object and enforces the
// configured size ceiling on the decoded payload.
func parseBase64Source(source any) (mediaType string, data []byte, err error) {
	src, ok := source.(map[string]any)
	if !ok {
		return "", nil, errors.New("source object is required")
	}
	srcType, _ := src["type"].(string)
	if srcType != "base64" {
		return "", nil, errors.Errorf("unsupported source type %q, only inline base64 is accepted", srcType)
	}
	mediaType, _ = src["media_type"].(string)
	if mediaType == "" {
		return "", nil, errors.New("source media_type is required")
	}
	encoded, _ := src["data"].(string)
	if encoded == "" {
		return "", nil, errors.New("source data is required")
	}
	data, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, errors.Wrap(err, "decode base64 source data")
	}
	if limit := config.MaxInlineImageSizeMB * 1024 * 1024; len(data) > limit {
		return "", nil, errors.Errorf("inline source exceeds the %dMB limit", config.MaxInlineImageSizeMB)
	}
	return mediaType, data, nil
}

func marshalToolInput(input any) (json.RawMessage, error) {
	if input == nil {
		return json.RawMessage("{}"), nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, errors.Wrap(err, "marshal tool_use input")
	}
	return raw, nil
}

func parseToolChoice(choice *relaymodel.ClaudeToolChoice) (*relaymodel.ToolChoice, error) {
	switch choice.Type {
	case "auto":
		return &relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceAuto}, nil
	case "any":
		return &relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceAny}, nil
	case "none":
		return &relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceNone}, nil
	case "tool":
		if choice.Name == "" {
			return nil, errors.New("tool_choice: name is required when type is tool")
		}
		return &relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceTool, Name: choice.Name}, nil
	}
	return nil, errors.Errorf("tool_choice: unsupported type %q", choice.Type)
}

// documentFormatFromMediaType maps a document MIME type onto the upstream
// format label.
func documentFormatFromMediaType(mediaType string) (string, error) {
	switch mediaType {
	case "application/pdf":
		return "pdf", nil
	case "text/plain":
		return "txt", nil
	case "text/csv":
		return "csv", nil
	case "text/html":
		return "html", nil
	case "text/markdown", "text/md":
		return "md", nil
	case "application/msword":
		return "doc", nil
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx", nil
	case "application/vnd.ms-excel":
		return "xls", nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx", nil
	}
	return "", errors.Errorf("unsupported document media type %q", mediaType)
}
