// Package openai translates between the OpenAI Chat Completions dialect and
// the provider-neutral relay model.
package openai

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
	imgutil "github.com/skybridge-ai/bedrock-gateway/common/image"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// ConvertRequest normalizes a Chat Completions request. System messages are
// lifted out of the conversation into the request-level system channel, and
// tool role messages become user turns carrying a tool_result block, which is
// the only conversation shape the upstream accepts.
func ConvertRequest(req *relaymodel.ChatRequest) (*relaymodel.Request, error) {
	if req.Model == "" {
		return nil, errors.New("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages must contain at least one entry")
	}
	if req.N != nil && *req.N > 1 {
		return nil, errors.Errorf("n must be 1, got %d", *req.N)
	}

	out := &relaymodel.Request{
		Model:       req.Model,
		ClientModel: req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}
	if req.MaxCompletionTokens != nil {
		out.MaxTokens = *req.MaxCompletionTokens
	}

	stops, err := parseStop(req.Stop)
	if err != nil {
		return nil, err
	}
	out.StopSequences = stops

	var system []string
	for i, msg := range req.Messages {
		switch msg.Role {
		case relaymodel.RoleSystem:
			if text := msg.StringContent(); text != "" {
				system = append(system, text)
			}
		case relaymodel.RoleUser, relaymodel.RoleAssistant:
			converted, err := convertMessage(msg, i)
			if err != nil {
				return nil, err
			}
			out.Messages = append(out.Messages, converted)
		case relaymodel.RoleTool:
			converted, err := convertToolMessage(msg, i)
			if err != nil {
				return nil, err
			}
			out.Messages = append(out.Messages, converted)
		default:
			return nil, errors.Errorf("messages[%d]: unsupported role %q", i, msg.Role)
		}
	}
	out.System = strings.Join(system, "\n\n")

	tools, err := convertTools(req.Tools)
	if err != nil {
		return nil, err
	}
	out.Tools = tools

	choice, err := parseToolChoice(req.ToolChoice)
	if err != nil {
		return nil, err
	}
	out.ToolChoice = choice

	return out, nil
}

func convertMessage(msg relaymodel.ChatMessage, idx int) (relaymodel.Message, error) {
	blocks, err := convertContent(msg.Content, idx)
	if err != nil {
		return relaymodel.Message{}, err
	}
	for _, call := range msg.ToolCalls {
		block, err := convertToolCall(call, idx)
		if err != nil {
			return relaymodel.Message{}, err
		}
		blocks = append(blocks, block)
	}
	return relaymodel.Message{Role: msg.Role, Content: blocks}, nil
}

func convertContent(content any, msgIdx int) ([]relaymodel.ContentBlock, error) {
	switch typed := content.(type) {
	case nil:
		// Assistant turns that only carry tool calls have null content.
		return nil, nil
	case string:
		if typed == "" {
			return nil, nil
		}
		return []relaymodel.ContentBlock{relaymodel.TextBlock(typed)}, nil
	case []any:
		blocks := make([]relaymodel.ContentBlock, 0, len(typed))
		for i, part := range typed {
			block, keep, err := convertPart(part, msgIdx, i)
			if err != nil {
				return nil, err
			}
			if keep {
				blocks = append(blocks, block)
			}
		}
		return blocks, nil
	default:
		return nil, errors.Errorf("messages[%d]: content must be a string or an array of parts", msgIdx)
	}
}

func convertPart(part any, msgIdx, partIdx int) (relaymodel.ContentBlock, bool, error) {
	obj, ok := part.(map[string]any)
	if !ok {
		return relaymodel.ContentBlock{}, false, errors.Errorf(
			"messages[%d].content[%d]: each part must be an object", msgIdx, partIdx)
	}
	partType, _ := obj["type"].(string)
	switch partType {
	case relaymodel.ContentTypeText:
		text, _ := obj["text"].(string)
		if text == "" {
			return relaymodel.ContentBlock{}, false, nil
		}
		return relaymodel.TextBlock(text), true, nil
	case relaymodel.ContentTypeImageURL:
		urlObj, ok := obj["image_url"].(map[string]any)
		if !ok {
			return relaymodel.ContentBlock{}, false, errors.Errorf(
				"messages[%d].content[%d]: image_url is required", msgIdx, partIdx)
		}
		url, _ := urlObj["url"].(string)
		mediaType, data, err := imgutil.ParseDataURL(url)
		if err != nil {
			return relaymodel.ContentBlock{}, false, errors.Wrapf(err,
				"messages[%d].content[%d]: only inline base64 data URLs are accepted", msgIdx, partIdx)
		}
		if maxBytes := config.MaxInlineImageSizeMB * 1024 * 1024; len(data) > maxBytes {
			return relaymodel.ContentBlock{}, false, errors.Errorf(
				"messages[%d].content[%d]: image exceeds the %dMB limit", msgIdx, partIdx, config.MaxInlineImageSizeMB)
		}
		return relaymodel.ImageBlock(mediaType, data), true, nil
	default:
		return relaymodel.ContentBlock{}, false, errors.Errorf(
			"messages[%d].content[%d]: unsupported content part type %q", msgIdx, partIdx, partType)
	}
}

func convertToolCall(call relaymodel.Tool, msgIdx int) (relaymodel.ContentBlock, error) {
	if call.Id == "" {
		return relaymodel.ContentBlock{}, errors.Errorf("messages[%d]: tool calls require an id", msgIdx)
	}
	if call.Function == nil || call.Function.Name == "" {
		return relaymodel.ContentBlock{}, errors.Errorf("messages[%d]: tool call %q requires a function name", msgIdx, call.Id)
	}
	input, err := toolArgumentsJSON(call.Function.Arguments)
	if err != nil {
		return relaymodel.ContentBlock{}, errors.Wrapf(err, "messages[%d]: tool call %q arguments", msgIdx, call.Id)
	}
	return relaymodel.ToolUseBlock(call.Id, call.Function.Name, input), nil
}

func toolArgumentsJSON(args any) (json.RawMessage, error) {
	switch typed := args.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case string:
		if typed == "" {
			return json.RawMessage(`{}`), nil
		}
		if !json.Valid([]byte(typed)) {
			return nil, errors.New("arguments are not valid JSON")
		}
		return json.RawMessage(typed), nil
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return nil, errors.Wrap(err, "marshal arguments")
		}
		return raw, nil
	}
}

func convertToolMessage(msg relaymodel.ChatMessage, idx int) (relaymodel.Message, error) {
	if msg.ToolCallId == "" {
		return relaymodel.Message{}, errors.Errorf("messages[%d]: tool messages require tool_call_id", idx)
	}
	var nested []relaymodel.ContentBlock
	if text := msg.StringContent(); text != "" {
		nested = []relaymodel.ContentBlock{relaymodel.TextBlock(text)}
	}
	return relaymodel.Message{
		Role:    relaymodel.RoleUser,
		Content: []relaymodel.ContentBlock{relaymodel.ToolResultBlock(msg.ToolCallId, nested, false)},
	}, nil
}

func parseStop(stop any) ([]string, error) {
	switch typed := stop.(type) {
	case nil:
		return nil, nil
	case string:
		if typed == "" {
			return nil, nil
		}
		return []string{typed}, nil
	case []any:
		out := make([]string, 0, len(typed))
		for i, v := range typed {
			s, ok := v.(string)
			if !ok {
				return nil, errors.Errorf("stop[%d] must be a string", i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.New("stop must be a string or an array of strings")
	}
}

func convertTools(tools []relaymodel.Tool) ([]relaymodel.ToolDefinition, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]relaymodel.ToolDefinition, 0, len(tools))
	for i, tool := range tools {
		if tool.Function == nil || tool.Function.Name == "" {
			return nil, errors.Errorf("tools[%d]: function name is required", i)
		}
		def := relaymodel.ToolDefinition{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
		}
		if tool.Function.Parameters == nil {
			// Zero-argument functions omit parameters in this dialect; the
			// upstream still demands a schema document.
			def.InputSchema = json.RawMessage(`{"type":"object"}`)
		} else {
			schema, err := json.Marshal(tool.Function.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "tools[%d]: marshal parameters", i)
			}
			def.InputSchema = schema
		}
		out = append(out, def)
	}
	return out, nil
}

// parseToolChoice maps the dialect's loosely typed tool_choice. "required" is
// this dialect's spelling of "any".
func parseToolChoice(choice any) (*relaymodel.ToolChoice, error) {
	switch typed := choice.(type) {
	case nil:
		return nil, nil
	case string:
		switch typed {
		case "auto":
			return &relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceAuto}, nil
		case "none":
			return &relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceNone}, nil
		case "required", "any":
			return &relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceAny}, nil
		default:
			return nil, errors.Errorf("unsupported tool_choice %q", typed)
		}
	case map[string]any:
		fn, ok := typed["function"].(map[string]any)
		if !ok {
			return nil, errors.New("tool_choice object requires a function")
		}
		name, _ := fn["name"].(string)
		if name == "" {
			return nil, errors.New("tool_choice function requires a name")
		}
		return &relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceTool, Name: name}, nil
	default:
		return nil, errors.New("tool_choice must be a string or an object")
	}
}
