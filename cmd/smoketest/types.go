package main

import (
	"net/http"
	"time"
)

// requestType identifies which gateway surface a variant exercises.
type requestType string

const (
	requestTypeClaudeMessages requestType = "claude_messages"
	requestTypeChatCompletion requestType = "chat_completion"
	requestTypeCountTokens    requestType = "count_tokens"
	requestTypeModelList      requestType = "model_list"
)

// requestVariant describes one probe permutation.
type requestVariant struct {
	Key         string
	Header      string
	Type        requestType
	Method      string
	Path        string
	Stream      bool
	Expectation expectation
	Aliases     []string
}

// expectation describes what a variant must find in the response.
type expectation int

const (
	expectationDefault expectation = iota
	expectationToolInvocation
	expectationVision
)

// testResult captures the outcome of a single probe.
type testResult struct {
	Model        string
	Variant      string
	Label        string
	Type         requestType
	Stream       bool
	Success      bool
	Skipped      bool
	StatusCode   int
	Duration     time.Duration
	ErrorReason  string
	RequestBody  string
	ResponseBody string
}

// requestSpec is a fully constructed probe ready to execute. Model is kept
// alongside the body because the model-listing check needs it at evaluation
// time.
type requestSpec struct {
	Model       string
	Variant     string
	Label       string
	Type        requestType
	Method      string
	Path        string
	Body        any
	Stream      bool
	Expectation expectation
}

func (s requestSpec) method() string {
	if s.Method == "" {
		return http.MethodPost
	}
	return s.Method
}
