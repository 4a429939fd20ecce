package bedrock

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func TestConvertRequestPreservesCoreFields(t *testing.T) {
	req := &relaymodel.Request{
		Model:  "anthropic.claude-sonnet-4-20250514-v1:0",
		System: "You are terse.",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("hi")}},
			{Role: relaymodel.RoleAssistant, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("hello")}},
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("bye")}},
		},
		MaxTokens:     512,
		Temperature:   float64Ptr(0.7),
		TopP:          float64Ptr(0.9),
		StopSequences: []string{"END", "STOP"},
	}

	in, _, err := ConvertRequest(req)
	require.NoError(t, err)

	require.NotNil(t, in.ModelId)
	assert.Equal(t, "anthropic.claude-sonnet-4-20250514-v1:0", *in.ModelId)

	require.Len(t, in.Messages, 3)
	assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)
	assert.Equal(t, types.ConversationRoleAssistant, in.Messages[1].Role)
	assert.Equal(t, types.ConversationRoleUser, in.Messages[2].Role)
	text, ok := in.Messages[0].Content[0].(*types.ContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "hi", text.Value)

	require.NotNil(t, in.InferenceConfig)
	assert.EqualValues(t, 512, *in.InferenceConfig.MaxTokens)
	assert.InDelta(t, 0.7, float64(*in.InferenceConfig.Temperature), 1e-6)
	assert.InDelta(t, 0.9, float64(*in.InferenceConfig.TopP), 1e-6)
	assert.Equal(t, []string{"END", "STOP"}, in.InferenceConfig.StopSequences)

	require.Len(t, in.System, 1)
	system, ok := in.System[0].(*types.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "You are terse.", system.Value)

	assert.Nil(t, in.ToolConfig)
	assert.Nil(t, in.AdditionalModelRequestFields)
}

func TestConvertRequestMergesAdjacentRoles(t *testing.T) {
	req := &relaymodel.Request{
		Model: "anthropic.claude-3-haiku-20240307-v1:0",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("first")}},
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("second")}},
		},
		MaxTokens: 16,
	}

	in, _, err := ConvertRequest(req)
	require.NoError(t, err)
	require.Len(t, in.Messages, 1)
	require.Len(t, in.Messages[0].Content, 2)
}

func TestConvertRequestTools(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`)
	req := &relaymodel.Request{
		Model: "anthropic.claude-sonnet-4-20250514-v1:0",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("weather in SF?")}},
		},
		MaxTokens: 128,
		Tools: []relaymodel.ToolDefinition{
			{Name: "get_weather", Description: "Look up current weather", InputSchema: schema},
			{Name: "get_time", InputSchema: json.RawMessage(`{"type":"object"}`)},
		},
		ToolChoice: &relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceTool, Name: "get_weather"},
	}

	in, _, err := ConvertRequest(req)
	require.NoError(t, err)
	require.NotNil(t, in.ToolConfig)
	require.Len(t, in.ToolConfig.Tools, 2)

	spec, ok := in.ToolConfig.Tools[0].(*types.ToolMemberToolSpec)
	require.True(t, ok)
	assert.Equal(t, "get_weather", *spec.Value.Name)
	assert.Equal(t, "Look up current weather", *spec.Value.Description)
	schemaDoc, ok := spec.Value.InputSchema.(*types.ToolInputSchemaMemberJson)
	require.True(t, ok)
	raw, err := documentJSON(schemaDoc.Value)
	require.NoError(t, err)
	assert.JSONEq(t, string(schema), string(raw))

	second, ok := in.ToolConfig.Tools[1].(*types.ToolMemberToolSpec)
	require.True(t, ok)
	assert.Nil(t, second.Value.Description)

	choice, ok := in.ToolConfig.ToolChoice.(*types.ToolChoiceMemberTool)
	require.True(t, ok)
	assert.Equal(t, "get_weather", *choice.Value.Name)
}

func TestConvertRequestToolChoiceVariants(t *testing.T) {
	base := func(choice *relaymodel.ToolChoice) *relaymodel.Request {
		return &relaymodel.Request{
			Model: "anthropic.claude-sonnet-4-20250514-v1:0",
			Messages: []relaymodel.Message{
				{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("hi")}},
			},
			MaxTokens:  16,
			Tools:      []relaymodel.ToolDefinition{{Name: "probe", InputSchema: json.RawMessage(`{"type":"object"}`)}},
			ToolChoice: choice,
		}
	}

	in, _, err := ConvertRequest(base(nil))
	require.NoError(t, err)
	_, ok := in.ToolConfig.ToolChoice.(*types.ToolChoiceMemberAuto)
	assert.True(t, ok, "nil choice defaults to auto")

	in, _, err = ConvertRequest(base(&relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceAny}))
	require.NoError(t, err)
	_, ok = in.ToolConfig.ToolChoice.(*types.ToolChoiceMemberAny)
	assert.True(t, ok)

	in, _, err = ConvertRequest(base(&relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceNone}))
	require.NoError(t, err)
	assert.Nil(t, in.ToolConfig, "none omits the tool config entirely")
}

func TestConvertRequestAliasesLongToolNames(t *testing.T) {
	longName := "mcp__filesystem-server__" + strings.Repeat("read_directory_tree_", 4)
	require.Greater(t, len(longName), 64)

	req := &relaymodel.Request{
		Model: "anthropic.claude-sonnet-4-20250514-v1:0",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("list files")}},
		},
		MaxTokens:  64,
		Tools:      []relaymodel.ToolDefinition{{Name: longName, InputSchema: json.RawMessage(`{"type":"object"}`)}},
		ToolChoice: &relaymodel.ToolChoice{Kind: relaymodel.ToolChoiceTool, Name: longName},
	}

	in, names, err := ConvertRequest(req)
	require.NoError(t, err)

	spec := in.ToolConfig.Tools[0].(*types.ToolMemberToolSpec)
	alias := *spec.Value.Name
	assert.LessOrEqual(t, len(alias), 64)
	assert.NotEqual(t, longName, alias)
	assert.Equal(t, longName, names.Restore(alias))

	choice := in.ToolConfig.ToolChoice.(*types.ToolChoiceMemberTool)
	assert.Equal(t, alias, *choice.Value.Name, "forced choice uses the same alias")
}

func TestConvertRequestToolRoundTrip(t *testing.T) {
	input := json.RawMessage(`{"city":"SF"}`)
	req := &relaymodel.Request{
		Model: "anthropic.claude-sonnet-4-20250514-v1:0",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("weather?")}},
			{Role: relaymodel.RoleAssistant, Content: []relaymodel.ContentBlock{
				relaymodel.ToolUseBlock("toolu_abc123", "get_weather", input),
			}},
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{
				relaymodel.ToolResultBlock("toolu_abc123", []relaymodel.ContentBlock{relaymodel.TextBlock("72F")}, false),
			}},
		},
		MaxTokens: 64,
	}

	in, _, err := ConvertRequest(req)
	require.NoError(t, err)
	require.Len(t, in.Messages, 3)

	use, ok := in.Messages[1].Content[0].(*types.ContentBlockMemberToolUse)
	require.True(t, ok)
	assert.Equal(t, "toolu_abc123", *use.Value.ToolUseId)
	assert.Equal(t, "get_weather", *use.Value.Name)
	raw, err := documentJSON(use.Value.Input)
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"SF"}`, string(raw))

	result, ok := in.Messages[2].Content[0].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	assert.Equal(t, "toolu_abc123", *result.Value.ToolUseId)
	assert.Equal(t, types.ToolResultStatusSuccess, result.Value.Status)
	nested, ok := result.Value.Content[0].(*types.ToolResultContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "72F", nested.Value)
}

func TestConvertRequestErrorToolResult(t *testing.T) {
	req := &relaymodel.Request{
		Model: "anthropic.claude-sonnet-4-20250514-v1:0",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{
				relaymodel.ToolResultBlock("toolu_x", []relaymodel.ContentBlock{relaymodel.TextBlock("boom")}, true),
			}},
		},
		MaxTokens: 64,
	}

	in, _, err := ConvertRequest(req)
	require.NoError(t, err)
	result := in.Messages[0].Content[0].(*types.ContentBlockMemberToolResult)
	assert.Equal(t, types.ToolResultStatusError, result.Value.Status)
}

func TestConvertRequestImageBlock(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4e, 0x47}
	req := &relaymodel.Request{
		Model: "anthropic.claude-sonnet-4-20250514-v1:0",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{
				relaymodel.TextBlock("what is this?"),
				relaymodel.ImageBlock("image/png", data),
			}},
		},
		MaxTokens: 64,
	}

	in, _, err := ConvertRequest(req)
	require.NoError(t, err)
	image, ok := in.Messages[0].Content[1].(*types.ContentBlockMemberImage)
	require.True(t, ok)
	assert.Equal(t, types.ImageFormatPng, image.Value.Format)
	source, ok := image.Value.Source.(*types.ImageSourceMemberBytes)
	require.True(t, ok)
	assert.Equal(t, data, source.Value)
}

func TestConvertRequestRejectsUnknownImageType(t *testing.T) {
	req := &relaymodel.Request{
		Model: "anthropic.claude-sonnet-4-20250514-v1:0",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{
				relaymodel.ImageBlock("image/tiff", []byte{1}),
			}},
		},
		MaxTokens: 64,
	}

	_, _, err := ConvertRequest(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image/tiff")
}

func TestConvertRequestDropsThinkingBlocks(t *testing.T) {
	req := &relaymodel.Request{
		Model: "anthropic.claude-sonnet-4-20250514-v1:0",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("go on")}},
			{Role: relaymodel.RoleAssistant, Content: []relaymodel.ContentBlock{
				relaymodel.ThinkingBlock("internal reasoning"),
				relaymodel.TextBlock("the answer"),
			}},
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("thanks")}},
		},
		MaxTokens: 64,
	}

	in, _, err := ConvertRequest(req)
	require.NoError(t, err)
	require.Len(t, in.Messages[1].Content, 1)
	text := in.Messages[1].Content[0].(*types.ContentBlockMemberText)
	assert.Equal(t, "the answer", text.Value)
}

func TestConvertRequestAdditionalModelFields(t *testing.T) {
	req := &relaymodel.Request{
		Model: "anthropic.claude-sonnet-4-20250514-v1:0",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("think hard")}},
		},
		MaxTokens: 2048,
		TopK:      intPtr(40),
		Thinking:  &relaymodel.ThinkingConfig{Enabled: true, BudgetTokens: 1024},
	}

	in, _, err := ConvertRequest(req)
	require.NoError(t, err)
	require.NotNil(t, in.AdditionalModelRequestFields)

	raw, err := in.AdditionalModelRequestFields.MarshalSmithyDocument()
	require.NoError(t, err)
	assert.JSONEq(t, `{"top_k":40,"thinking":{"type":"enabled","budget_tokens":1024}}`, string(raw))
}

func TestConvertRequestRejectsEmptyMessage(t *testing.T) {
	req := &relaymodel.Request{
		Model: "anthropic.claude-sonnet-4-20250514-v1:0",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.ThinkingBlock("only thinking")}},
		},
		MaxTokens: 64,
	}

	_, _, err := ConvertRequest(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable content")
}

func TestToStreamInput(t *testing.T) {
	req := &relaymodel.Request{
		Model:  "anthropic.claude-sonnet-4-20250514-v1:0",
		System: "be brief",
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: []relaymodel.ContentBlock{relaymodel.TextBlock("hi")}},
		},
		MaxTokens: 32,
		Tools:     []relaymodel.ToolDefinition{{Name: "probe", InputSchema: json.RawMessage(`{"type":"object"}`)}},
		TopK:      intPtr(5),
	}

	in, _, err := ConvertRequest(req)
	require.NoError(t, err)

	stream := ToStreamInput(in)
	assert.Equal(t, in.ModelId, stream.ModelId)
	assert.Equal(t, in.Messages, stream.Messages)
	assert.Equal(t, in.System, stream.System)
	assert.Equal(t, in.InferenceConfig, stream.InferenceConfig)
	assert.Equal(t, in.ToolConfig, stream.ToolConfig)
	assert.Equal(t, in.AdditionalModelRequestFields, stream.AdditionalModelRequestFields)
}
