package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// anthropicVersion is sent on Anthropic-dialect probes; the gateway ignores
// it today but real Claude clients always send it.
const anthropicVersion = "2023-06-01"

// performRequest executes one probe and classifies the outcome.
func performRequest(ctx context.Context, client *http.Client, baseURL, apiKey string, spec requestSpec) (result testResult) {
	start := time.Now()
	result = testResult{
		Model:   spec.Model,
		Variant: spec.Variant,
		Label:   spec.Label,
		Type:    spec.Type,
		Stream:  spec.Stream,
	}
	defer func() {
		result.Duration = time.Since(start)
	}()

	var reqBody io.Reader
	if spec.Body != nil {
		payload, err := json.Marshal(spec.Body)
		if err != nil {
			result.ErrorReason = fmt.Sprintf("marshal payload: %v", err)
			return
		}
		result.RequestBody = clip(string(payload), maxLoggedBodyBytes)
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method(), baseURL+spec.Path, reqBody)
	if err != nil {
		result.ErrorReason = fmt.Sprintf("build request: %v", err)
		return
	}

	if spec.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "bedrock-gateway-smoketest/1.0")

	// Present the key the way a native client of each dialect would, so the
	// sweep covers both credential header forms the gateway accepts.
	switch spec.Type {
	case requestTypeClaudeMessages, requestTypeCountTokens:
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)
	default:
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.ErrorReason = fmt.Sprintf("do request: %v", err)
		return
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	if spec.Stream && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		streamData, streamErr := collectStreamBody(resp.Body, maxResponseBodySize)
		if len(streamData) > 0 {
			result.ResponseBody = clip(string(streamData), maxLoggedBodyBytes)
		}
		if streamErr != nil {
			result.ErrorReason = fmt.Sprintf("stream read: %v", streamErr)
			return
		}

		success, reason := evaluateStreamResponse(spec, streamData)
		if success {
			result.Success = true
			return
		}
		if reason == "" {
			reason = snippet(streamData)
		}
		result.ErrorReason = reason
		return
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if len(body) > 0 {
		result.ResponseBody = clip(string(body), maxLoggedBodyBytes)
	}
	if readErr != nil {
		result.ErrorReason = fmt.Sprintf("read response: %v", readErr)
		return
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		success, reason := evaluateResponse(spec, body)
		if success {
			result.Success = true
			return
		}
		if reason == "" {
			reason = snippet(body)
		}
		result.ErrorReason = reason
		return
	}

	reason := fmt.Sprintf("status %s: %s", resp.Status, snippet(body))
	if isUnsupportedCombination(resp.StatusCode, body) {
		result.Skipped = true
		result.ErrorReason = reason
		return
	}

	result.ErrorReason = reason
	return
}

// collectStreamBody reads an SSE body until the terminal frame, EOF, or the
// size limit. Both dialects are handled: the OpenAI stream ends with a
// "data: [DONE]" line, the Anthropic stream with a message_stop event.
func collectStreamBody(body io.Reader, limit int) ([]byte, error) {
	reader := bufio.NewReader(body)
	buffer := &bytes.Buffer{}

	for buffer.Len() < limit {
		chunk, err := reader.ReadBytes('\n')
		if len(chunk) > 0 {
			if buffer.Len()+len(chunk) > limit {
				chunk = chunk[:limit-buffer.Len()]
			}
			buffer.Write(chunk)
			trimmed := bytes.TrimSpace(chunk)
			if bytes.Equal(trimmed, []byte("data: [DONE]")) || bytes.Contains(trimmed, []byte(`"type":"message_stop"`)) {
				break
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return buffer.Bytes(), err
		}
	}

	if buffer.Len() == 0 {
		return buffer.Bytes(), fmt.Errorf("no stream data received")
	}

	return buffer.Bytes(), nil
}
