package main

const (
	defaultAPIBase     = "http://localhost:8000"
	defaultSmokeModels = "claude-3-5-sonnet-20241022,claude-3-5-haiku-20241022"

	defaultMaxTokens   = 512
	defaultTemperature = 0.2

	maxResponseBodySize = 1 << 20 // 1 MiB
	maxLoggedBodyBytes  = 2048
)

// tinyPNG is a 1x1 transparent PNG, small enough to inline in every vision
// probe without inflating the request log.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

const weatherToolDescription = "Get the current weather for a location."

var weatherToolSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"location": map[string]any{
			"type":        "string",
			"description": "City and state, e.g. San Francisco, CA",
		},
	},
	"required": []string{"location"},
}

// claudeMessagesPayload builds the /v1/messages body for the given expectation.
func claudeMessagesPayload(model string, stream bool, exp expectation) any {
	base := map[string]any{
		"model":       model,
		"max_tokens":  defaultMaxTokens,
		"temperature": defaultTemperature,
		"stream":      stream,
	}

	switch exp {
	case expectationToolInvocation:
		base["messages"] = []map[string]any{
			{"role": "user", "content": "What is the weather in San Francisco, CA right now? Use the tool."},
		}
		base["tools"] = []map[string]any{
			{
				"name":         "get_weather",
				"description":  weatherToolDescription,
				"input_schema": weatherToolSchema,
			},
		}
		base["tool_choice"] = map[string]any{"type": "tool", "name": "get_weather"}

	case expectationVision:
		base["messages"] = []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type": "image",
						"source": map[string]any{
							"type":       "base64",
							"media_type": "image/png",
							"data":       tinyPNG,
						},
					},
					{"type": "text", "text": "Describe this image in one short sentence."},
				},
			},
		}

	default:
		base["messages"] = []map[string]any{
			{"role": "user", "content": "Reply with the single word pong."},
		}
	}

	return base
}

// chatCompletionPayload builds the /v1/chat/completions body.
func chatCompletionPayload(model string, stream bool, exp expectation) any {
	base := map[string]any{
		"model":       model,
		"max_tokens":  defaultMaxTokens,
		"temperature": defaultTemperature,
		"stream":      stream,
	}

	if exp == expectationToolInvocation {
		base["messages"] = []map[string]any{
			{"role": "system", "content": "You are a weather assistant that must call tools when asked about weather."},
			{"role": "user", "content": "What is the weather in San Francisco, CA right now? Use the tool."},
		}
		base["tools"] = []map[string]any{
			{
				"type": "function",
				"function": map[string]any{
					"name":        "get_weather",
					"description": weatherToolDescription,
					"parameters":  weatherToolSchema,
				},
			},
		}
		base["tool_choice"] = map[string]any{
			"type":     "function",
			"function": map[string]string{"name": "get_weather"},
		}
		return base
	}

	base["messages"] = []map[string]any{
		{"role": "user", "content": "Reply with the single word pong."},
	}
	return base
}

// countTokensPayload builds the /v1/messages/count_tokens body. The counter
// never reaches the upstream, so the content only needs to be non-trivial.
func countTokensPayload(model string) any {
	return map[string]any{
		"model":  model,
		"system": "You are a terse assistant.",
		"messages": []map[string]any{
			{"role": "user", "content": "How many tokens does this sentence cost?"},
		},
	}
}
