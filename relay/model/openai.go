package model

import "github.com/skybridge-ai/bedrock-gateway/common/random"

// Content part types accepted inside an OpenAI message content array.
const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

// ChatRequest is the OpenAI Chat Completions request body.
type ChatRequest struct {
	Model    string        `json:"model" binding:"required"`
	Messages []ChatMessage `json:"messages"`
	// MaxCompletionTokens is the newer alias; when both are present it wins.
	MaxTokens           int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int           `json:"max_completion_tokens,omitempty"`
	Temperature         *float64       `json:"temperature,omitempty"`
	TopP                *float64       `json:"top_p,omitempty"`
	N                   *int           `json:"n,omitempty"`
	Stop                any            `json:"stop,omitempty"` // string or []string
	Stream              bool           `json:"stream,omitempty"`
	StreamOptions       *StreamOptions `json:"stream_options,omitempty"`
	Tools               []Tool         `json:"tools,omitempty"`
	// ToolChoice is "auto" | "none" | "required" or {"type":"function","function":{"name":...}}.
	ToolChoice any    `json:"tool_choice,omitempty"`
	User       string `json:"user,omitempty"`
}

type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// ChatMessage is one OpenAI-dialect conversation entry. Content is either a
// plain string or an array of content parts.
type ChatMessage struct {
	Role       string `json:"role"`
	Content    any    `json:"content,omitempty"`
	Name       string `json:"name,omitempty"`
	ToolCalls  []Tool `json:"tool_calls,omitempty"`
	ToolCallId string `json:"tool_call_id,omitempty"`
}

// MessageContent is one parsed content part of a structured message.
type MessageContent struct {
	Type     string    `json:"type"`
	Text     *string   `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	Url    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// IsStringContent reports whether Content is a plain string.
func (m ChatMessage) IsStringContent() bool {
	_, ok := m.Content.(string)
	return ok
}

// StringContent flattens the message content to plain text. Structured parts
// contribute their text fields in order; non-text parts are skipped.
func (m ChatMessage) StringContent() string {
	content, ok := m.Content.(string)
	if ok {
		return content
	}
	contentList, ok := m.Content.([]any)
	if !ok {
		return ""
	}
	var contentStr string
	for _, contentItem := range contentList {
		contentMap, ok := contentItem.(map[string]any)
		if !ok {
			continue
		}
		if contentMap["type"] == ContentTypeText {
			if subStr, ok := contentMap["text"].(string); ok {
				contentStr += subStr
			}
		}
	}
	return contentStr
}

// ParseContent normalizes the loosely typed content payload into typed parts.
// The image detail hint is preserved for token estimation.
func (m ChatMessage) ParseContent() []MessageContent {
	var contentList []MessageContent
	content, ok := m.Content.(string)
	if ok {
		contentList = append(contentList, MessageContent{
			Type: ContentTypeText,
			Text: &content,
		})
		return contentList
	}
	anyList, ok := m.Content.([]any)
	if !ok {
		return contentList
	}
	for _, contentItem := range anyList {
		contentMap, ok := contentItem.(map[string]any)
		if !ok {
			continue
		}
		switch contentMap["type"] {
		case ContentTypeText:
			if subStr, ok := contentMap["text"].(string); ok {
				contentList = append(contentList, MessageContent{
					Type: ContentTypeText,
					Text: &subStr,
				})
			}
		case ContentTypeImageURL:
			if subObj, ok := contentMap["image_url"].(map[string]any); ok {
				detail := ""
				if d, ok := subObj["detail"].(string); ok {
					detail = d
				}
				url, _ := subObj["url"].(string)
				contentList = append(contentList, MessageContent{
					Type: ContentTypeImageURL,
					ImageURL: &ImageURL{
						Url:    url,
						Detail: detail,
					},
				})
			}
		}
	}
	return contentList
}

// ChatResponse is the OpenAI Chat Completions unary response body.
type ChatResponse struct {
	Id      string       `json:"id"`
	Object  string       `json:"object"` // always "chat.completion"
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *OpenAIUsage `json:"usage,omitempty"`
}

type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatChunk is one streaming frame of the OpenAI dialect.
type ChatChunk struct {
	Id      string            `json:"id"`
	Object  string            `json:"object"` // always "chat.completion.chunk"
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []ChatChunkChoice `json:"choices"`
	Usage   *OpenAIUsage      `json:"usage,omitempty"`
}

type ChatChunkChoice struct {
	Index        int       `json:"index"`
	Delta        ChatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

type ChatDelta struct {
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	ToolCalls []Tool `json:"tool_calls,omitempty"`
}

// OpenAIUsage is the OpenAI-dialect usage report.
type OpenAIUsage struct {
	PromptTokens        int                  `json:"prompt_tokens"`
	CompletionTokens    int                  `json:"completion_tokens"`
	TotalTokens         int                  `json:"total_tokens"`
	PromptTokensDetails *PromptTokensDetails `json:"prompt_tokens_details,omitempty"`
}

type PromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

// OpenAI derives the OpenAI-dialect usage report. Cached-token details are
// attached only when the upstream reported cache reads.
func (u Usage) OpenAI() *OpenAIUsage {
	out := &OpenAIUsage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
	}
	if u.CacheReadTokens > 0 {
		out.PromptTokensDetails = &PromptTokensDetails{CachedTokens: u.CacheReadTokens}
	}
	return out
}

// OpenAIErrorResponse is the OpenAI error envelope.
type OpenAIErrorResponse struct {
	Error Error `json:"error"`
}

// NewChatCompletionID mints the identifier shared by a response or by every
// chunk of one stream.
func NewChatCompletionID() string {
	return "chatcmpl-" + random.GetUUID()
}
