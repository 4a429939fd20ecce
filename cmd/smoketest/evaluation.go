package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// evaluateResponse inspects a unary response and validates the shape the
// variant promised.
func evaluateResponse(spec requestSpec, body []byte) (bool, string) {
	if len(body) == 0 {
		return false, "empty response body"
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, fmt.Sprintf("malformed JSON response: %v", err)
	}

	if reason, failed := errorEnvelopeReason(payload, body); failed {
		return false, reason
	}

	switch spec.Type {
	case requestTypeClaudeMessages:
		if spec.Expectation == expectationToolInvocation {
			if hasToolUseBlock(payload) {
				return true, ""
			}
			return false, "response missing tool_use content block"
		}
		if stringValue(payload, "type") != "message" {
			return false, `response type is not "message"`
		}
		if content, ok := payload["content"].([]any); ok && len(content) > 0 {
			return true, ""
		}
		return false, "response carried no content blocks"

	case requestTypeChatCompletion:
		choices, _ := payload["choices"].([]any)
		if len(choices) == 0 {
			return false, "response missing choices"
		}
		if spec.Expectation == expectationToolInvocation {
			if hasToolCalls(choices) {
				return true, ""
			}
			return false, "response missing tool_calls"
		}
		return true, ""

	case requestTypeCountTokens:
		if n, ok := payload["input_tokens"].(float64); ok && n >= 1 {
			return true, ""
		}
		return false, "input_tokens missing or zero"

	case requestTypeModelList:
		if stringValue(payload, "object") != "list" {
			return false, `response object is not "list"`
		}
		data, _ := payload["data"].([]any)
		for _, item := range data {
			if entry, ok := item.(map[string]any); ok && stringValue(entry, "id") == spec.Model {
				return true, ""
			}
		}
		return false, fmt.Sprintf("listing does not include %s", spec.Model)
	}

	return false, fmt.Sprintf("unknown request type %q", spec.Type)
}

// evaluateStreamResponse validates a collected SSE body against the variant.
func evaluateStreamResponse(spec requestSpec, data []byte) (bool, string) {
	payloads, sawDone := sseDataPayloads(data)
	if len(payloads) == 0 {
		return false, "stream carried no data frames"
	}

	switch spec.Type {
	case requestTypeClaudeMessages:
		var sawStart, sawStop, sawToolUse bool
		for _, p := range payloads {
			switch stringValue(p, "type") {
			case "message_start":
				sawStart = true
			case "message_stop":
				sawStop = true
			case "content_block_start":
				if block, ok := p["content_block"].(map[string]any); ok && stringValue(block, "type") == "tool_use" {
					sawToolUse = true
				}
			case "error":
				reason, _ := errorEnvelopeReason(p, data)
				return false, reason
			}
		}
		if spec.Expectation == expectationToolInvocation && !sawToolUse {
			return false, "stream missing tool_use content block"
		}
		if !sawStart {
			return false, "stream missing message_start"
		}
		if !sawStop {
			return false, "stream ended without message_stop"
		}
		return true, ""

	case requestTypeChatCompletion:
		var sawChoices, sawToolCalls bool
		for _, p := range payloads {
			if reason, failed := errorEnvelopeReason(p, data); failed {
				return false, reason
			}
			choices, ok := p["choices"].([]any)
			if !ok || len(choices) == 0 {
				continue
			}
			sawChoices = true
			for _, choice := range choices {
				entry, ok := choice.(map[string]any)
				if !ok {
					continue
				}
				if delta, ok := entry["delta"].(map[string]any); ok {
					if calls, ok := delta["tool_calls"].([]any); ok && len(calls) > 0 {
						sawToolCalls = true
					}
				}
			}
		}
		if spec.Expectation == expectationToolInvocation && !sawToolCalls {
			return false, "stream missing tool_calls deltas"
		}
		if !sawChoices {
			return false, "stream carried no choices"
		}
		if !sawDone {
			return false, "stream ended without [DONE]"
		}
		return true, ""
	}

	return false, fmt.Sprintf("request type %q does not stream", spec.Type)
}

// sseDataPayloads extracts the JSON payloads of every data line, reporting
// whether the [DONE] sentinel was seen. Non-JSON data lines are ignored.
func sseDataPayloads(data []byte) ([]map[string]any, bool) {
	var (
		payloads []map[string]any
		sawDone  bool
	)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if raw == "[DONE]" {
			sawDone = true
			continue
		}
		if raw == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			continue
		}
		payloads = append(payloads, payload)
	}
	return payloads, sawDone
}

// errorEnvelopeReason recognizes both dialects' error envelopes: the
// Anthropic {"type":"error","error":{...}} shape and the OpenAI
// {"error":{...}} shape. Empty OpenAI error objects are not failures; some
// clients serialize the field even on success.
func errorEnvelopeReason(payload map[string]any, body []byte) (string, bool) {
	if stringValue(payload, "type") == "error" {
		if errObj, ok := payload["error"].(map[string]any); ok {
			if msg := stringValue(errObj, "message"); msg != "" {
				return fmt.Sprintf("%s: %s", stringValue(errObj, "type"), msg), true
			}
		}
		return snippet(body), true
	}

	errVal, ok := payload["error"]
	if !ok {
		return "", false
	}
	switch v := errVal.(type) {
	case nil:
		return "", false
	case string:
		if strings.TrimSpace(v) != "" {
			return v, true
		}
		return "", false
	case map[string]any:
		if stringValue(v, "message") != "" || stringValue(v, "type") != "" || stringValue(v, "code") != "" {
			return snippet(body), true
		}
		return "", false
	default:
		return snippet(body), true
	}
}

// hasToolUseBlock reports whether an Anthropic message carries a named
// tool_use content block.
func hasToolUseBlock(payload map[string]any) bool {
	content, ok := payload["content"].([]any)
	if !ok {
		return false
	}
	for _, item := range content {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if stringValue(block, "type") == "tool_use" && stringValue(block, "name") != "" {
			return true
		}
	}
	return false
}

// hasToolCalls reports whether any chat choice's message carries tool calls.
func hasToolCalls(choices []any) bool {
	for _, choice := range choices {
		entry, ok := choice.(map[string]any)
		if !ok {
			continue
		}
		message, ok := entry["message"].(map[string]any)
		if !ok {
			continue
		}
		if calls, ok := message["tool_calls"].([]any); ok && len(calls) > 0 {
			return true
		}
	}
	return false
}

// isUnsupportedCombination reports whether a rejected probe reflects a model
// or deployment limitation rather than a gateway defect. Bedrock refuses
// on-demand invocation for models that require an inference profile, and a
// region may simply not carry the model; neither should poison the matrix.
func isUnsupportedCombination(status int, body []byte) bool {
	if status != http.StatusBadRequest && status != http.StatusNotFound {
		return false
	}
	text := strings.ToLower(string(body))
	for _, marker := range []string{
		"on-demand throughput",
		"inference profile",
		"does not support",
		"unsupported",
		"model_not_found",
	} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func stringValue(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return value
}
