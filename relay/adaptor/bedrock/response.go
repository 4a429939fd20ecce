package bedrock

import (
	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
	"github.com/skybridge-ai/bedrock-gateway/relay/toolmap"
)

// ConvertResponse translates a unary Converse reply into the canonical form.
// Tool names are de-aliased through the request's name map.
func ConvertResponse(out *bedrockruntime.ConverseOutput, names *toolmap.Map) (*relaymodel.Response, error) {
	resp := &relaymodel.Response{
		ID:         relaymodel.NewMessageID(),
		StopReason: convertStopReason(out.StopReason),
	}

	message, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.Errorf("unexpected converse output type %T", out.Output)
	}

	for i, block := range message.Value.Content {
		converted, err := convertOutputBlock(block, names)
		if err != nil {
			return nil, errors.Wrapf(err, "output block %d", i)
		}
		if converted != nil {
			resp.Content = append(resp.Content, *converted)
		}
	}

	resp.Usage = convertUsage(out.Usage)
	return resp, nil
}

// convertOutputBlock maps one upstream content block to its canonical form.
// Blocks the clients cannot represent come back as nil and are skipped.
func convertOutputBlock(block types.ContentBlock, names *toolmap.Map) (*relaymodel.ContentBlock, error) {
	switch v := block.(type) {
	case *types.ContentBlockMemberText:
		b := relaymodel.TextBlock(v.Value)
		return &b, nil

	case *types.ContentBlockMemberToolUse:
		input, err := documentJSON(v.Value.Input)
		if err != nil {
			return nil, err
		}
		b := relaymodel.ToolUseBlock(
			deref(v.Value.ToolUseId),
			names.Restore(deref(v.Value.Name)),
			input,
		)
		return &b, nil

	case *types.ContentBlockMemberReasoningContent:
		switch r := v.Value.(type) {
		case *types.ReasoningContentBlockMemberReasoningText:
			b := relaymodel.ThinkingBlock(deref(r.Value.Text))
			return &b, nil
		}
		return nil, nil

	default:
		return nil, nil
	}
}

// convertStopReason maps the upstream stop reason onto the canonical
// vocabulary. Unknown values pass through; the dialect mappers have their own
// fallbacks.
func convertStopReason(reason types.StopReason) relaymodel.StopReason {
	switch reason {
	case types.StopReasonEndTurn:
		return relaymodel.StopEndTurn
	case types.StopReasonMaxTokens:
		return relaymodel.StopMaxTokens
	case types.StopReasonStopSequence:
		return relaymodel.StopStopSequence
	case types.StopReasonToolUse:
		return relaymodel.StopToolUse
	case types.StopReasonContentFiltered:
		return relaymodel.StopContentFiltered
	case types.StopReasonGuardrailIntervened:
		return relaymodel.StopGuardrail
	}
	return relaymodel.StopReason(reason)
}

func convertUsage(usage *types.TokenUsage) relaymodel.Usage {
	if usage == nil {
		return relaymodel.Usage{}
	}
	u := relaymodel.Usage{}
	if usage.InputTokens != nil {
		u.InputTokens = int(*usage.InputTokens)
	}
	if usage.OutputTokens != nil {
		u.OutputTokens = int(*usage.OutputTokens)
	}
	if usage.CacheReadInputTokens != nil {
		u.CacheReadTokens = int(*usage.CacheReadInputTokens)
	}
	if usage.CacheWriteInputTokens != nil {
		u.CacheWriteTokens = int(*usage.CacheWriteInputTokens)
	}
	return u
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
