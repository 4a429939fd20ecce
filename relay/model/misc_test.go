package model

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageMergeKeepsObservedTotals(t *testing.T) {
	var acc Usage
	acc.Merge(Usage{InputTokens: 12})
	acc.Merge(Usage{OutputTokens: 6})
	// A later frame repeating the totals must not double them.
	acc.Merge(Usage{InputTokens: 12, OutputTokens: 6, CacheReadTokens: 3})

	assert.Equal(t, 12, acc.InputTokens)
	assert.Equal(t, 6, acc.OutputTokens)
	assert.Equal(t, 3, acc.CacheReadTokens)
	assert.Equal(t, 18, acc.TotalTokens())
}

func TestUsageAnthropicSerialization(t *testing.T) {
	data, err := json.Marshal(Usage{InputTokens: 5, OutputTokens: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"input_tokens":5,"output_tokens":1}`, string(data))

	data, err = json.Marshal(Usage{InputTokens: 5, OutputTokens: 1, CacheReadTokens: 2, CacheWriteTokens: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"input_tokens":5,"output_tokens":1,"cache_read_input_tokens":2,"cache_creation_input_tokens":4}`, string(data))
}

func TestUsageOpenAIConversion(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 4}
	out := u.OpenAI()
	assert.Equal(t, 10, out.PromptTokens)
	assert.Equal(t, 4, out.CompletionTokens)
	assert.Equal(t, 14, out.TotalTokens)
	assert.Nil(t, out.PromptTokensDetails)

	u.CacheReadTokens = 7
	out = u.OpenAI()
	require.NotNil(t, out.PromptTokensDetails)
	assert.Equal(t, 7, out.PromptTokensDetails.CachedTokens)
}

func TestErrorTypeForStatus(t *testing.T) {
	cases := map[int]string{
		http.StatusUnauthorized:        ErrTypeAuthentication,
		http.StatusForbidden:           ErrTypeForbidden,
		http.StatusTooManyRequests:     ErrTypeRateLimit,
		http.StatusBadRequest:          ErrTypeInvalidRequest,
		http.StatusBadGateway:          ErrTypeAPI,
		http.StatusGatewayTimeout:      ErrTypeAPI,
		http.StatusInternalServerError: ErrTypeAPI,
	}
	for status, wantType := range cases {
		assert.Equal(t, wantType, ErrorTypeForStatus(status), "status %d", status)
	}
}

func TestErrorWrapperPreservesRawError(t *testing.T) {
	cause := errors.New("dynamo on fire")
	wrapped := ErrorWrapper(cause, "persistence_error", http.StatusInternalServerError)

	assert.Equal(t, http.StatusInternalServerError, wrapped.StatusCode)
	assert.Equal(t, ErrTypeAPI, wrapped.Error.Type)
	assert.Equal(t, "persistence_error", wrapped.Error.Code)
	assert.Same(t, cause, wrapped.Error.RawError)

	// RawError never leaks onto the wire.
	data, err := json.Marshal(wrapped.Error)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dynamo on fire\"}")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	_, hasRaw := decoded["RawError"]
	assert.False(t, hasRaw)
}

func TestTypedErrorConstructors(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, NewAuthenticationError("no key").StatusCode)
	assert.Equal(t, ErrTypeAuthentication, NewAuthenticationError("no key").Error.Type)

	assert.Equal(t, http.StatusForbidden, NewForbiddenError("budget exceeded").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, NewRateLimitError("slow down").StatusCode)
	assert.Equal(t, http.StatusBadRequest, NewInvalidRequestError("bad block").StatusCode)

	up := NewUpstreamError(http.StatusBadGateway, "bedrock rejected the request", errors.New("boom"))
	assert.Equal(t, http.StatusBadGateway, up.StatusCode)
	assert.Equal(t, ErrTypeAPI, up.Error.Type)

	internal := NewInternalError(errors.New("secret detail"))
	assert.Equal(t, http.StatusInternalServerError, internal.StatusCode)
	// Internal causes are summarized, never echoed to clients.
	assert.Equal(t, "internal server error", internal.Error.Message)
}
