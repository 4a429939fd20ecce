package main

import "net/http"

var requestVariants = []requestVariant{
	{Key: "claude_stream_false", Header: "Claude (stream=false)", Type: requestTypeClaudeMessages, Path: "/v1/messages", Stream: false, Expectation: expectationDefault},
	{Key: "claude_stream_true", Header: "Claude (stream=true)", Type: requestTypeClaudeMessages, Path: "/v1/messages", Stream: true, Expectation: expectationDefault},
	{Key: "claude_tools_stream_false", Header: "Claude Tools (stream=false)", Type: requestTypeClaudeMessages, Path: "/v1/messages", Stream: false, Expectation: expectationToolInvocation, Aliases: []string{"claude_tools"}},
	{Key: "claude_tools_stream_true", Header: "Claude Tools (stream=true)", Type: requestTypeClaudeMessages, Path: "/v1/messages", Stream: true, Expectation: expectationToolInvocation, Aliases: []string{"claude_tools_stream"}},
	{Key: "claude_vision", Header: "Claude Vision", Type: requestTypeClaudeMessages, Path: "/v1/messages", Stream: false, Expectation: expectationVision, Aliases: []string{"vision"}},

	{Key: "chat_stream_false", Header: "Chat (stream=false)", Type: requestTypeChatCompletion, Path: "/v1/chat/completions", Stream: false, Expectation: expectationDefault},
	{Key: "chat_stream_true", Header: "Chat (stream=true)", Type: requestTypeChatCompletion, Path: "/v1/chat/completions", Stream: true, Expectation: expectationDefault},
	{Key: "chat_tools_stream_false", Header: "Chat Tools (stream=false)", Type: requestTypeChatCompletion, Path: "/v1/chat/completions", Stream: false, Expectation: expectationToolInvocation, Aliases: []string{"chat_tools"}},
	{Key: "chat_tools_stream_true", Header: "Chat Tools (stream=true)", Type: requestTypeChatCompletion, Path: "/v1/chat/completions", Stream: true, Expectation: expectationToolInvocation, Aliases: []string{"chat_tools_stream"}},

	{Key: "count_tokens", Header: "Count Tokens", Type: requestTypeCountTokens, Path: "/v1/messages/count_tokens", Stream: false, Expectation: expectationDefault},
	{Key: "model_list", Header: "Models", Type: requestTypeModelList, Method: http.MethodGet, Path: "/v1/models", Stream: false, Expectation: expectationDefault, Aliases: []string{"models"}},
}

// legacyTextOnlyModels enumerates aliases that predate tool use and vision
// input. Probes that need either are skipped for them instead of counting as
// gateway failures.
var legacyTextOnlyModels = map[string]struct{}{
	"claude-instant-1.2": {},
	"claude-2.0":         {},
	"claude-2.1":         {},
}
