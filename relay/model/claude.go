package model

import "encoding/json"

// ClaudeRequest is the Anthropic Messages API request body. Content and
// system payloads keep their loosely typed wire form; the anthropic adaptor
// normalizes them into the provider-neutral model.
type ClaudeRequest struct {
	Model     string          `json:"model" binding:"required"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []ClaudeMessage `json:"messages"`
	// System is either a plain string or an array of text blocks.
	System        any               `json:"system,omitempty"`
	Temperature   *float64          `json:"temperature,omitempty"`
	TopP          *float64          `json:"top_p,omitempty"`
	TopK          *int              `json:"top_k,omitempty"`
	StopSequences []string          `json:"stop_sequences,omitempty"`
	Stream        *bool             `json:"stream,omitempty"`
	Tools         []ClaudeTool      `json:"tools,omitempty"`
	ToolChoice    *ClaudeToolChoice `json:"tool_choice,omitempty"`
	Thinking      *ClaudeThinking   `json:"thinking,omitempty"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

// ClaudeMessage is one conversation turn. Content is either a plain string or
// an array of content block objects.
type ClaudeMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ClaudeTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type ClaudeToolChoice struct {
	Type string `json:"type"` // auto | any | none | tool
	Name string `json:"name,omitempty"`
	// DisableParallelToolUse is accepted for wire compatibility; the upstream
	// has no equivalent and it is not forwarded.
	DisableParallelToolUse *bool `json:"disable_parallel_tool_use,omitempty"`
}

type ClaudeThinking struct {
	Type         string `json:"type"` // enabled | disabled
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// ClaudeResponse is the Anthropic Messages API unary response body and the
// message skeleton embedded in message_start stream frames.
type ClaudeResponse struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"` // always "message"
	Role         string               `json:"role"` // always "assistant"
	Content      []ClaudeContentBlock `json:"content"`
	Model        string               `json:"model"`
	StopReason   *string              `json:"stop_reason"`
	StopSequence *string              `json:"stop_sequence"`
	Usage        Usage                `json:"usage"`
}

// ClaudeContentBlock is the Anthropic wire form of a response content block.
// Text and Thinking use pointers so empty strings still serialize, which the
// stream protocol requires for freshly opened blocks.
type ClaudeContentBlock struct {
	Type     string          `json:"type"`
	Text     *string         `json:"text,omitempty"`
	Thinking *string         `json:"thinking,omitempty"`
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
}

// ClaudeStreamEvent is the payload of one Anthropic SSE frame; Type doubles
// as the SSE event name.
type ClaudeStreamEvent struct {
	Type         string              `json:"type"`
	Message      *ClaudeResponse     `json:"message,omitempty"`
	Index        *int                `json:"index,omitempty"`
	ContentBlock *ClaudeContentBlock `json:"content_block,omitempty"`
	Delta        *ClaudeDelta        `json:"delta,omitempty"`
	Usage        *Usage              `json:"usage,omitempty"`
	Error        *ClaudeError        `json:"error,omitempty"`
}

// ClaudeDelta carries the incremental payload of content_block_delta and
// message_delta frames.
type ClaudeDelta struct {
	Type         string  `json:"type,omitempty"` // text_delta | input_json_delta | thinking_delta
	Text         string  `json:"text,omitempty"`
	PartialJSON  string  `json:"partial_json,omitempty"`
	Thinking     string  `json:"thinking,omitempty"`
	StopReason   *string `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence,omitempty"`
}

type ClaudeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClaudeErrorResponse is the Anthropic error envelope, used for unary error
// replies and as the payload of in-stream error frames.
type ClaudeErrorResponse struct {
	Type  string      `json:"type"` // always "error"
	Error ClaudeError `json:"error"`
}

// ClaudeTokenCount is the response body of the count_tokens endpoint.
type ClaudeTokenCount struct {
	InputTokens int `json:"input_tokens"`
}
