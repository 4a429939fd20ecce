package bedrock

import (
	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
	"github.com/skybridge-ai/bedrock-gateway/relay/toolmap"
)

// ConvertRequest renders a canonical request into a Converse call. The
// returned name map carries the tool aliases of this request; the response
// and stream translators need it to de-alias tool names on the way back.
func ConvertRequest(req *relaymodel.Request) (*bedrockruntime.ConverseInput, *toolmap.Map, error) {
	names := toolmap.New()

	messages, err := relaymodel.NormalizeMessages(req.Messages)
	if err != nil {
		return nil, nil, err
	}

	converseMessages := make([]types.Message, 0, len(messages))
	for i, msg := range messages {
		blocks, err := convertBlocks(msg.Content, names)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "message %d", i)
		}
		if len(blocks) == 0 {
			return nil, nil, errors.Errorf("message %d: no usable content", i)
		}
		converseMessages = append(converseMessages, types.Message{
			Role:    types.ConversationRole(msg.Role),
			Content: blocks,
		})
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(req.Model),
		Messages:        converseMessages,
		InferenceConfig: inferenceConfig(req),
	}

	if req.System != "" {
		in.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	toolConfig, err := convertToolConfig(req, names)
	if err != nil {
		return nil, nil, err
	}
	in.ToolConfig = toolConfig

	if extra := additionalModelFields(req); extra != nil {
		in.AdditionalModelRequestFields = extra
	}

	return in, names, nil
}

// ToStreamInput copies a unary Converse input into its streaming twin.
func ToStreamInput(in *bedrockruntime.ConverseInput) *bedrockruntime.ConverseStreamInput {
	return &bedrockruntime.ConverseStreamInput{
		ModelId:                      in.ModelId,
		Messages:                     in.Messages,
		System:                       in.System,
		InferenceConfig:              in.InferenceConfig,
		ToolConfig:                   in.ToolConfig,
		AdditionalModelRequestFields: in.AdditionalModelRequestFields,
	}
}

func inferenceConfig(req *relaymodel.Request) *types.InferenceConfiguration {
	cfg := &types.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	if req.Temperature != nil {
		cfg.Temperature = aws.Float32(float32(*req.Temperature))
	}
	if req.TopP != nil {
		cfg.TopP = aws.Float32(float32(*req.TopP))
	}
	if len(req.StopSequences) > 0 {
		stop := make([]string, len(req.StopSequences))
		copy(stop, req.StopSequences)
		cfg.StopSequences = stop
	}
	return cfg
}

// convertToolConfig builds the upstream tool configuration with aliased
// names. Converse has no "none" choice, so "none" omits the whole tool
// config, which disables tool use just the same.
func convertToolConfig(req *relaymodel.Request, names *toolmap.Map) (*types.ToolConfiguration, error) {
	if len(req.Tools) == 0 {
		return nil, nil
	}
	if req.ToolChoice != nil && req.ToolChoice.Kind == relaymodel.ToolChoiceNone {
		return nil, nil
	}

	tools := make([]types.Tool, 0, len(req.Tools))
	for _, tool := range req.Tools {
		spec := types.ToolSpecification{
			Name: aws.String(names.Alias(tool.Name)),
		}
		if tool.Description != "" {
			spec.Description = aws.String(tool.Description)
		}
		schema, err := toolInputDocument(tool.InputSchema)
		if err != nil {
			return nil, errors.Wrapf(err, "tool %q: input schema", tool.Name)
		}
		spec.InputSchema = &types.ToolInputSchemaMemberJson{Value: schema}
		tools = append(tools, &types.ToolMemberToolSpec{Value: spec})
	}

	cfg := &types.ToolConfiguration{Tools: tools}
	switch {
	case req.ToolChoice == nil || req.ToolChoice.Kind == relaymodel.ToolChoiceAuto:
		cfg.ToolChoice = &types.ToolChoiceMemberAuto{}
	case req.ToolChoice.Kind == relaymodel.ToolChoiceAny:
		cfg.ToolChoice = &types.ToolChoiceMemberAny{}
	case req.ToolChoice.Kind == relaymodel.ToolChoiceTool:
		cfg.ToolChoice = &types.ToolChoiceMemberTool{
			Value: types.SpecificToolChoice{Name: aws.String(names.Alias(req.ToolChoice.Name))},
		}
	default:
		return nil, errors.Errorf("unsupported tool choice %q", req.ToolChoice.Kind)
	}
	return cfg, nil
}

// additionalModelFields carries parameters the Converse schema has no field
// for: Claude's top_k and the extended thinking switch.
func additionalModelFields(req *relaymodel.Request) document.Interface {
	extra := map[string]any{}
	if req.TopK != nil {
		extra["top_k"] = *req.TopK
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		extra["thinking"] = map[string]any{
			"type":          "enabled",
			"budget_tokens": req.Thinking.BudgetTokens,
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return document.NewLazyDocument(extra)
}
