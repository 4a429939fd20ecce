package main

import (
	"net/http"
	"strings"
	"testing"
)

func TestParseModels(t *testing.T) {
	cases := map[string][]string{
		"claude-3-5-haiku-20241022": {"claude-3-5-haiku-20241022"},
		"a,b":                       {"a", "b"},
		"a; b \n c":                 {"a", "b", "c"},
		"  a  ,  b   ":              {"a", "b"},
		"a\n\nb":                    {"a", "b"},
		"a b":                       {"a", "b"},
	}

	for input, want := range cases {
		got := parseModels(input)
		if len(got) != len(want) {
			t.Fatalf("parseModels(%q) length = %d, want %d", input, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("parseModels(%q)[%d] = %q, want %q", input, i, got[i], want[i])
			}
		}
	}
}

func TestParseModelsEmpty(t *testing.T) {
	if got := parseModels("   "); len(got) != 0 {
		t.Fatalf("parseModels empty length = %d, want 0", len(got))
	}
}

func TestParseVariantsDefault(t *testing.T) {
	got, err := parseVariants("")
	if err != nil {
		t.Fatalf("parseVariants empty error: %v", err)
	}
	if len(got) != len(requestVariants) {
		t.Fatalf("parseVariants empty length = %d, want %d", len(got), len(requestVariants))
	}
}

func TestParseVariantsGroup(t *testing.T) {
	got, err := parseVariants("claude")
	if err != nil {
		t.Fatalf("parseVariants(claude) error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("parseVariants(claude) selected nothing")
	}
	for _, variant := range got {
		if variant.Type != requestTypeClaudeMessages {
			t.Fatalf("parseVariants(claude) selected %q of type %q", variant.Key, variant.Type)
		}
	}
}

func TestParseVariantsAlias(t *testing.T) {
	got, err := parseVariants("chat_tools, models")
	if err != nil {
		t.Fatalf("parseVariants alias error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("parseVariants alias length = %d, want 2", len(got))
	}
	if got[0].Key != "chat_tools_stream_false" {
		t.Fatalf("parseVariants alias[0] = %q, want chat_tools_stream_false", got[0].Key)
	}
	if got[1].Key != "model_list" {
		t.Fatalf("parseVariants alias[1] = %q, want model_list", got[1].Key)
	}
}

func TestParseVariantsUnknown(t *testing.T) {
	if _, err := parseVariants("telepathy"); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestEvaluateResponseClaudeMessage(t *testing.T) {
	body := []byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"pong"}],"stop_reason":"end_turn"}`)
	spec := requestSpec{Type: requestTypeClaudeMessages, Expectation: expectationDefault}
	success, reason := evaluateResponse(spec, body)
	if !success {
		t.Fatalf("expected success, got failure: %s", reason)
	}
}

func TestEvaluateResponseClaudeToolUse(t *testing.T) {
	body := []byte(`{"type":"message","content":[{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"location":"San Francisco, CA"}}],"stop_reason":"tool_use"}`)
	spec := requestSpec{Type: requestTypeClaudeMessages, Expectation: expectationToolInvocation}
	success, reason := evaluateResponse(spec, body)
	if !success {
		t.Fatalf("expected tool_use success, got: %s", reason)
	}
}

func TestEvaluateResponseClaudeErrorEnvelope(t *testing.T) {
	body := []byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens is required"}}`)
	spec := requestSpec{Type: requestTypeClaudeMessages, Expectation: expectationDefault}
	success, reason := evaluateResponse(spec, body)
	if success {
		t.Fatal("expected failure for error envelope")
	}
	if !strings.Contains(reason, "max_tokens is required") {
		t.Fatalf("reason %q does not carry the upstream message", reason)
	}
}

func TestEvaluateResponseChatCompletion(t *testing.T) {
	body := []byte(`{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`)
	spec := requestSpec{Type: requestTypeChatCompletion, Expectation: expectationDefault}
	success, reason := evaluateResponse(spec, body)
	if !success {
		t.Fatalf("expected success, got failure: %s", reason)
	}
}

func TestEvaluateResponseChatToolCalls(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"location\":\"San Francisco, CA\"}"}}]}}]}`)
	spec := requestSpec{Type: requestTypeChatCompletion, Expectation: expectationToolInvocation}
	success, reason := evaluateResponse(spec, body)
	if !success {
		t.Fatalf("expected tool call success, got: %s", reason)
	}
}

func TestEvaluateResponseIgnoresEmptyErrorObject(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"role":"assistant","content":"hi"}}],"error":{"message":"","type":"","code":null}}`)
	spec := requestSpec{Type: requestTypeChatCompletion, Expectation: expectationDefault}
	success, reason := evaluateResponse(spec, body)
	if !success {
		t.Fatalf("expected success despite empty error object, got: %s", reason)
	}
}

func TestEvaluateResponseCountTokens(t *testing.T) {
	spec := requestSpec{Type: requestTypeCountTokens}
	if success, reason := evaluateResponse(spec, []byte(`{"input_tokens":42}`)); !success {
		t.Fatalf("expected count success, got: %s", reason)
	}
	if success, _ := evaluateResponse(spec, []byte(`{"input_tokens":0}`)); success {
		t.Fatal("expected failure for zero input_tokens")
	}
}

func TestEvaluateResponseModelListing(t *testing.T) {
	body := []byte(`{"object":"list","data":[{"id":"claude-3-5-haiku-20241022","object":"model"},{"id":"claude-3-5-sonnet-20241022","object":"model"}]}`)

	spec := requestSpec{Type: requestTypeModelList, Model: "claude-3-5-sonnet-20241022"}
	if success, reason := evaluateResponse(spec, body); !success {
		t.Fatalf("expected listing success, got: %s", reason)
	}

	spec.Model = "claude-9"
	success, reason := evaluateResponse(spec, body)
	if success {
		t.Fatal("expected failure for absent model")
	}
	if !strings.Contains(reason, "claude-9") {
		t.Fatalf("reason %q does not name the missing model", reason)
	}
}

func TestEvaluateStreamClaudeMessages(t *testing.T) {
	data := []byte("event: message_start\n" +
		`data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[]}}` + "\n\n" +
		"event: content_block_delta\n" +
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"pong"}}` + "\n\n" +
		"event: message_stop\n" +
		`data: {"type":"message_stop"}` + "\n\n")
	spec := requestSpec{Type: requestTypeClaudeMessages, Stream: true, Expectation: expectationDefault}
	success, reason := evaluateStreamResponse(spec, data)
	if !success {
		t.Fatalf("expected stream success, got: %s", reason)
	}
}

func TestEvaluateStreamClaudeMissingStop(t *testing.T) {
	data := []byte("event: message_start\n" +
		`data: {"type":"message_start","message":{"id":"msg_1"}}` + "\n\n")
	spec := requestSpec{Type: requestTypeClaudeMessages, Stream: true, Expectation: expectationDefault}
	success, reason := evaluateStreamResponse(spec, data)
	if success {
		t.Fatal("expected failure for truncated stream")
	}
	if !strings.Contains(reason, "message_stop") {
		t.Fatalf("reason %q does not mention message_stop", reason)
	}
}

func TestEvaluateStreamClaudeToolUse(t *testing.T) {
	data := []byte("event: message_start\n" +
		`data: {"type":"message_start","message":{"id":"msg_1"}}` + "\n\n" +
		"event: content_block_start\n" +
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather"}}` + "\n\n" +
		"event: message_stop\n" +
		`data: {"type":"message_stop"}` + "\n\n")
	spec := requestSpec{Type: requestTypeClaudeMessages, Stream: true, Expectation: expectationToolInvocation}
	success, reason := evaluateStreamResponse(spec, data)
	if !success {
		t.Fatalf("expected stream tool_use success, got: %s", reason)
	}
}

func TestEvaluateStreamClaudeErrorEvent(t *testing.T) {
	data := []byte("event: error\n" +
		`data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}` + "\n\n")
	spec := requestSpec{Type: requestTypeClaudeMessages, Stream: true, Expectation: expectationDefault}
	success, reason := evaluateStreamResponse(spec, data)
	if success {
		t.Fatal("expected failure for error event")
	}
	if !strings.Contains(reason, "Overloaded") {
		t.Fatalf("reason %q does not carry the error message", reason)
	}
}

func TestEvaluateStreamChat(t *testing.T) {
	data := []byte(`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"pong"}}]}` + "\n\n" +
		`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}` + "\n\n" +
		"data: [DONE]\n\n")
	spec := requestSpec{Type: requestTypeChatCompletion, Stream: true, Expectation: expectationDefault}
	success, reason := evaluateStreamResponse(spec, data)
	if !success {
		t.Fatalf("expected stream success, got: %s", reason)
	}
}

func TestEvaluateStreamChatMissingDone(t *testing.T) {
	data := []byte(`data: {"choices":[{"index":0,"delta":{"content":"pong"}}]}` + "\n\n")
	spec := requestSpec{Type: requestTypeChatCompletion, Stream: true, Expectation: expectationDefault}
	success, reason := evaluateStreamResponse(spec, data)
	if success {
		t.Fatal("expected failure for stream without [DONE]")
	}
	if !strings.Contains(reason, "[DONE]") {
		t.Fatalf("reason %q does not mention the sentinel", reason)
	}
}

func TestEvaluateStreamChatToolInvocationMissing(t *testing.T) {
	data := []byte(`data: {"choices":[{"index":0,"delta":{"content":"plain text"}}]}` + "\n\n" +
		"data: [DONE]\n\n")
	spec := requestSpec{Type: requestTypeChatCompletion, Stream: true, Expectation: expectationToolInvocation}
	success, reason := evaluateStreamResponse(spec, data)
	if success {
		t.Fatal("expected failure when tool_calls deltas are absent")
	}
	if reason == "" {
		t.Fatal("expected a failure reason")
	}
}

func TestIsUnsupportedCombination(t *testing.T) {
	body := []byte(`{"type":"error","error":{"type":"invalid_request_error","message":"Invocation with on-demand throughput is not supported; use an inference profile"}}`)
	if !isUnsupportedCombination(http.StatusBadRequest, body) {
		t.Fatal("expected on-demand throughput rejection to be unsupported")
	}
	if isUnsupportedCombination(http.StatusInternalServerError, body) {
		t.Fatal("5xx must never count as unsupported")
	}
	if isUnsupportedCombination(http.StatusBadRequest, []byte(`{"error":{"message":"max_tokens is required"}}`)) {
		t.Fatal("validation failures must stay failures")
	}
}

func TestShouldSkipVariantLegacyModels(t *testing.T) {
	tools := requestSpec{Type: requestTypeClaudeMessages, Expectation: expectationToolInvocation}
	if _, skip := shouldSkipVariant("claude-2.1", tools); !skip {
		t.Fatal("expected tool probes to skip claude-2.1")
	}
	if _, skip := shouldSkipVariant("claude-3-5-sonnet-20241022", tools); skip {
		t.Fatal("modern models must not be skipped")
	}
	plain := requestSpec{Type: requestTypeClaudeMessages, Expectation: expectationDefault}
	if _, skip := shouldSkipVariant("claude-2.1", plain); skip {
		t.Fatal("plain text probes run everywhere")
	}
}

func TestBuildReportCounts(t *testing.T) {
	models := []string{"m1", "m2"}
	variants := requestVariants[:2]
	results := []testResult{
		{Model: "m1", Variant: variants[0].Key, Success: true},
		{Model: "m1", Variant: variants[1].Key, Skipped: true},
		{Model: "m2", Variant: variants[0].Key, ErrorReason: "boom"},
	}

	rep := buildReport(models, variants, results)
	if rep.totalRequests != 3 {
		t.Fatalf("totalRequests = %d, want 3", rep.totalRequests)
	}
	if rep.failedCount != 1 {
		t.Fatalf("failedCount = %d, want 1", rep.failedCount)
	}
	if rep.skippedCount != 1 {
		t.Fatalf("skippedCount = %d, want 1", rep.skippedCount)
	}

	failures, skips := gatherOutcomes(rep)
	if len(failures) != 1 || failures[0].Model != "m2" {
		t.Fatalf("gatherOutcomes failures = %+v", failures)
	}
	if len(skips) != 1 || skips[0].Model != "m1" {
		t.Fatalf("gatherOutcomes skips = %+v", skips)
	}
}

func TestClip(t *testing.T) {
	if got := clip("  hello  ", 10); got != "hello" {
		t.Fatalf("clip trim = %q", got)
	}
	if got := clip("abcdefgh", 4); got != "abcd..." {
		t.Fatalf("clip clamp = %q", got)
	}
	if got := clip("short", 0); got != "short" {
		t.Fatalf("clip zero limit = %q", got)
	}
}
