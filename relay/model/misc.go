package model

import "net/http"

// Usage mirrors the upstream token accounting for one exchange. The JSON tags
// follow the Anthropic Messages wire names so the struct can be serialized
// into Anthropic responses and stream frames directly; the OpenAI shape is
// derived via OpenAI().
type Usage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CacheReadTokens  int `json:"cache_read_input_tokens,omitempty"`
	CacheWriteTokens int `json:"cache_creation_input_tokens,omitempty"`
}

// Merge folds an upstream usage frame into the accumulator. Metadata frames
// carry totals rather than increments, so reported fields replace rather than
// add; zero fields leave previously observed values intact.
func (u *Usage) Merge(delta Usage) {
	if delta.InputTokens > 0 {
		u.InputTokens = delta.InputTokens
	}
	if delta.OutputTokens > 0 {
		u.OutputTokens = delta.OutputTokens
	}
	if delta.CacheReadTokens > 0 {
		u.CacheReadTokens = delta.CacheReadTokens
	}
	if delta.CacheWriteTokens > 0 {
		u.CacheWriteTokens = delta.CacheWriteTokens
	}
}

// TotalTokens is the billing total: prompt plus completion.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// Wire error types shared by both client dialects. The Anthropic dialect
// nests them under {"type":"error","error":{...}}, the OpenAI dialect under
// {"error":{...}}; the type strings themselves are identical.
const (
	ErrTypeAuthentication = "authentication_error"
	ErrTypeForbidden      = "forbidden_error"
	ErrTypeRateLimit      = "rate_limit_error"
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeAPI            = "api_error"
)

type Error struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Param   string `json:"param,omitempty"`
	Code    any    `json:"code,omitempty"`
	// RawError preserves the original upstream or internal error for diagnostics.
	// Omitted from JSON to avoid leaking provider internals.
	RawError error `json:"-"`
}

type ErrorWithStatusCode struct {
	Error
	StatusCode int `json:"-"`
}

// ErrorTypeForStatus maps an HTTP status to the wire error type both dialects
// report for it.
func ErrorTypeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrTypeAuthentication
	case http.StatusForbidden:
		return ErrTypeForbidden
	case http.StatusTooManyRequests:
		return ErrTypeRateLimit
	case http.StatusBadRequest:
		return ErrTypeInvalidRequest
	default:
		return ErrTypeAPI
	}
}

// ErrorWrapper attaches a machine-readable code and HTTP status to an
// internal error. Callers should log with a request-scoped logger; the
// original error stays available via RawError.
func ErrorWrapper(err error, code string, statusCode int) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		Error: Error{
			Message:  err.Error(),
			Type:     ErrorTypeForStatus(statusCode),
			Code:     code,
			RawError: err,
		},
		StatusCode: statusCode,
	}
}

func NewAuthenticationError(message string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		Error:      Error{Message: message, Type: ErrTypeAuthentication},
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		Error:      Error{Message: message, Type: ErrTypeForbidden},
		StatusCode: http.StatusForbidden,
	}
}

func NewRateLimitError(message string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		Error:      Error{Message: message, Type: ErrTypeRateLimit},
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewInvalidRequestError(message string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		Error:      Error{Message: message, Type: ErrTypeInvalidRequest},
		StatusCode: http.StatusBadRequest,
	}
}

// NewUpstreamError reports a provider-side failure. statusCode should be 502
// for upstream rejections and 504 for upstream timeouts.
func NewUpstreamError(statusCode int, message string, raw error) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		Error:      Error{Message: message, Type: ErrTypeAPI, RawError: raw},
		StatusCode: statusCode,
	}
}

func NewInternalError(err error) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{
		Error:      Error{Message: "internal server error", Type: ErrTypeAPI, RawError: err},
		StatusCode: http.StatusInternalServerError,
	}
}
