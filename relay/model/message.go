package model

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/skybridge-ai/bedrock-gateway/common/random"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// BlockKind discriminates the provider-neutral content block variants.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockImage      BlockKind = "image"
	BlockDocument   BlockKind = "document"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
	BlockThinking   BlockKind = "thinking"
)

// ContentBlock is one unit of message content in the provider-neutral form
// both inbound dialects are normalized into. Exactly the fields matching Kind
// are populated; binary payloads are held decoded.
type ContentBlock struct {
	Kind BlockKind

	// Text carries the payload for text and thinking blocks.
	Text string

	// MediaType is the original MIME type of an image block.
	MediaType string
	// Format and Name describe a document block.
	Format string
	Name   string
	// Data holds decoded image or document bytes.
	Data []byte

	// ToolUseID identifies a tool invocation (tool_use) or references one
	// (tool_result).
	ToolUseID string
	// ToolName is the client-visible tool name of a tool_use block.
	ToolName string
	// InputJSON is the tool invocation input, verbatim.
	InputJSON json.RawMessage

	// IsError marks a failed tool_result.
	IsError bool
	// Nested holds the content of a tool_result block.
	Nested []ContentBlock
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

func ThinkingBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockThinking, Text: text}
}

func ImageBlock(mediaType string, data []byte) ContentBlock {
	return ContentBlock{Kind: BlockImage, MediaType: mediaType, Data: data}
}

func DocumentBlock(format, name string, data []byte) ContentBlock {
	return ContentBlock{Kind: BlockDocument, Format: format, Name: name, Data: data}
}

func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Kind: BlockToolUse, ToolUseID: id, ToolName: name, InputJSON: input}
}

func ToolResultBlock(toolUseID string, content []ContentBlock, isError bool) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolUseID: toolUseID, Nested: content, IsError: isError}
}

// Message is one conversation turn in the provider-neutral form. Role is
// always RoleUser or RoleAssistant; system text travels separately on Request.
type Message struct {
	Role    string
	Content []ContentBlock
}

// Request is the provider-neutral request every inbound dialect is normalized
// into before the upstream conversion. Model carries the resolved upstream
// identifier; ClientModel keeps the name the caller sent so responses can echo
// it back unchanged.
type Request struct {
	Model       string
	ClientModel string

	// System is the concatenated system text, empty when the request had none.
	System   string
	Messages []Message

	MaxTokens     int
	Temperature   *float64
	TopP          *float64
	TopK          *int
	StopSequences []string
	Stream        bool

	Tools      []ToolDefinition
	ToolChoice *ToolChoice
	Thinking   *ThinkingConfig
}

// ThinkingConfig requests extended reasoning from models that support it. It
// is forwarded opaquely through the upstream's additional model fields.
type ThinkingConfig struct {
	Enabled      bool
	BudgetTokens int
}

// Response is the provider-neutral unary reply. Model is set by the relay
// controller to the client-requested name before dialect serialization.
type Response struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
}

// StopReason uses the upstream vocabulary; each dialect maps it with
// Anthropic() or OpenAI().
type StopReason string

const (
	StopEndTurn         StopReason = "end_turn"
	StopMaxTokens       StopReason = "max_tokens"
	StopStopSequence    StopReason = "stop_sequence"
	StopToolUse         StopReason = "tool_use"
	StopContentFiltered StopReason = "content_filtered"
	StopGuardrail       StopReason = "guardrail_intervened"
)

// Anthropic maps the upstream stop reason onto the Anthropic stop_reason
// vocabulary. Unknown reasons pass through unchanged.
func (r StopReason) Anthropic() string {
	switch r {
	case StopContentFiltered:
		return "stop_sequence"
	case StopGuardrail:
		return "end_turn"
	default:
		return string(r)
	}
}

// OpenAI maps the upstream stop reason onto the OpenAI finish_reason
// vocabulary. Unknown reasons degrade to "stop".
func (r StopReason) OpenAI() string {
	switch r {
	case StopEndTurn, StopStopSequence:
		return "stop"
	case StopMaxTokens:
		return "length"
	case StopToolUse:
		return "tool_calls"
	case StopContentFiltered, StopGuardrail:
		return "content_filter"
	default:
		return "stop"
	}
}

// NewMessageID mints the identifier of an Anthropic-dialect response.
func NewMessageID() string {
	return "msg_" + random.GetUUID()
}

// NormalizeMessages applies the conversation cleanup both dialects share:
// adjacent same-role messages merge into one (content concatenated in order)
// and a trailing assistant message with no content is dropped. A conversation
// that still ends with an assistant message afterwards is rejected, as is an
// empty one.
func NormalizeMessages(messages []Message) ([]Message, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages must contain at least one entry")
	}

	merged := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role {
			merged[n-1].Content = append(merged[n-1].Content, msg.Content...)
			continue
		}
		merged = append(merged, msg)
	}

	if n := len(merged); merged[n-1].Role == RoleAssistant && len(merged[n-1].Content) == 0 {
		merged = merged[:n-1]
	}
	if len(merged) == 0 {
		return nil, errors.New("messages must contain at least one non-empty entry")
	}
	if merged[len(merged)-1].Role == RoleAssistant {
		return nil, errors.New("the final message must be a user turn")
	}
	return merged, nil
}
