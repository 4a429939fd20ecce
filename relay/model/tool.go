package model

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"
)

// Tool is the OpenAI-dialect tool wire shape, used both for tool definitions
// in requests and for tool calls in responses and stream chunks.
type Tool struct {
	Id       string    `json:"id,omitempty"`       // Unique identifier for the tool call
	Type     string    `json:"type,omitempty"`     // Tool type, always "function" here
	Function *Function `json:"function,omitempty"` // Function definition or invocation
	Index    *int      `json:"index,omitempty"`    // Index identifies which call a streaming delta belongs to
}

// Function carries the function's metadata: description, name and parameters
// for definitions, arguments for invocations.
type Function struct {
	Description string `json:"description,omitempty"`
	Name        string `json:"name,omitempty"` // may be empty on streaming argument deltas
	Parameters  any    `json:"parameters,omitempty"`
	Arguments   any    `json:"arguments,omitempty"`
	Strict      *bool  `json:"strict,omitempty"`
}

// UnmarshalJSON supports both nested OpenAI function definitions and flattened
// payloads where function fields appear at the top level of the tool object.
// The upstream conversion expects the nested format, so flattened fields are
// normalized into the Function struct during decoding.
func (t *Tool) UnmarshalJSON(data []byte) error {
	type alias Tool
	var raw struct {
		alias
		Function    *Function `json:"function"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		Parameters  any       `json:"parameters"`
		Arguments   any       `json:"arguments"`
		Strict      *bool     `json:"strict"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "unmarshal tool")
	}

	*t = Tool(raw.alias)
	t.Function = raw.Function

	if t.Function == nil {
		if raw.Name != "" || raw.Description != "" || raw.Parameters != nil || raw.Arguments != nil || raw.Strict != nil {
			t.Function = &Function{
				Name:        raw.Name,
				Description: raw.Description,
				Parameters:  raw.Parameters,
				Arguments:   raw.Arguments,
				Strict:      raw.Strict,
			}
		}
		return nil
	}

	// Merge any flattened fields that were provided alongside the nested function
	if raw.Name != "" && t.Function.Name == "" {
		t.Function.Name = raw.Name
	}
	if raw.Description != "" && t.Function.Description == "" {
		t.Function.Description = raw.Description
	}
	if raw.Parameters != nil && t.Function.Parameters == nil {
		t.Function.Parameters = raw.Parameters
	}
	if raw.Arguments != nil && t.Function.Arguments == nil {
		t.Function.Arguments = raw.Arguments
	}
	if raw.Strict != nil && t.Function.Strict == nil {
		t.Function.Strict = raw.Strict
	}

	return nil
}

// ToolDefinition is the provider-neutral tool declaration sent upstream. Name
// is the client-visible name before aliasing; the upstream conversion applies
// the request's name map. InputSchema is forwarded verbatim.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolChoiceKind enumerates how the model may use the declared tools.
type ToolChoiceKind string

const (
	ToolChoiceAuto ToolChoiceKind = "auto" // model decides
	ToolChoiceAny  ToolChoiceKind = "any"  // must call some tool
	ToolChoiceNone ToolChoiceKind = "none" // must not call tools
	ToolChoiceTool ToolChoiceKind = "tool" // must call the named tool
)

// ToolChoice is the provider-neutral tool selection constraint. Name is set
// only when Kind is ToolChoiceTool.
type ToolChoice struct {
	Kind ToolChoiceKind
	Name string
}
