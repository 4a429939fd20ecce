package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/logger"
	"github.com/skybridge-ai/bedrock-gateway/model"
)

// builtin maps Anthropic-dialect model ids to Bedrock model ids. It is the
// fourth rung of the resolution ladder and feeds the /v1/models listing.
var builtin = map[string]string{
	"claude-instant-1.2":         "anthropic.claude-instant-v1",
	"claude-2.0":                 "anthropic.claude-v2",
	"claude-2.1":                 "anthropic.claude-v2:1",
	"claude-3-haiku-20240307":    "anthropic.claude-3-haiku-20240307-v1:0",
	"claude-3-sonnet-20240229":   "anthropic.claude-3-sonnet-20240229-v1:0",
	"claude-3-opus-20240229":     "anthropic.claude-3-opus-20240229-v1:0",
	"claude-3-5-sonnet-20240620": "anthropic.claude-3-5-sonnet-20240620-v1:0",
	"claude-3-5-sonnet-20241022": "anthropic.claude-3-5-sonnet-20241022-v2:0",
	"claude-3-5-sonnet-latest":   "anthropic.claude-3-5-sonnet-20241022-v2:0",
	"claude-3-5-haiku-20241022":  "anthropic.claude-3-5-haiku-20241022-v1:0",
	"claude-3-5-haiku-latest":    "anthropic.claude-3-5-haiku-20241022-v1:0",
	"claude-3-7-sonnet-20250219": "anthropic.claude-3-7-sonnet-20250219-v1:0",
	"claude-3-7-sonnet-latest":   "anthropic.claude-3-7-sonnet-20250219-v1:0",
	"claude-sonnet-4-20250514":   "anthropic.claude-sonnet-4-20250514-v1:0",
	"claude-sonnet-4-5-20250929": "anthropic.claude-sonnet-4-5-20250929-v1:0",
	"claude-opus-4-20250514":     "anthropic.claude-opus-4-20250514-v1:0",
	"claude-opus-4-1-20250805":   "anthropic.claude-opus-4-1-20250805-v1:0",
	"claude-haiku-4-5-20251001":  "anthropic.claude-haiku-4-5-20251001-v1:0",
}

// BuiltinModels returns the Anthropic-dialect ids of the baked-in table,
// sorted for stable listings.
func BuiltinModels() []string {
	ids := make([]string, 0, len(builtin))
	for id := range builtin {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuiltinUpstream returns the baked-in upstream id for an Anthropic-dialect
// id, if any.
func BuiltinUpstream(clientModel string) (string, bool) {
	upstream, ok := builtin[clientModel]
	return upstream, ok
}

// Resolve maps a caller-supplied model string to the upstream identifier.
//
// The caller may send an Anthropic-dialect id, an upstream id, or an upstream
// id decorated with a region prefix ("us.", "global.", ...) and/or a "#tag"
// suffix. Lookup order: the global override, then a family override matched
// against the undecorated core, then a persisted mapping, then the baked-in
// table, and finally the caller's string untouched. Nothing here rejects; an
// unknown model is the upstream's to refuse.
func Resolve(ctx context.Context, clientModel string) string {
	if config.AnthropicDefaultModel != "" {
		return config.AnthropicDefaultModel
	}

	if override := familyOverride(clientModel); override != "" {
		return override
	}

	if m, err := model.CacheGetModelMapping(ctx, clientModel); err == nil {
		return m.BedrockModelID
	} else if !errors.Is(err, model.ErrMappingNotFound) {
		logger.Logger.Warn("model mapping lookup failed, continuing down the ladder",
			zap.String("model", clientModel), zap.Error(err))
	}

	if upstream, ok := builtin[clientModel]; ok {
		return upstream
	}

	return clientModel
}

// familyOverride applies the sonnet/haiku/opus environment overrides. The
// family is detected on the undecorated core so "us.anthropic.claude-3-5-
// sonnet-20241022-v2:0#tag" and "claude-3-5-sonnet-20241022" behave alike.
func familyOverride(clientModel string) string {
	core := stripDecorations(clientModel)
	switch {
	case strings.Contains(core, "sonnet"):
		return config.AnthropicDefaultSonnetModel
	case strings.Contains(core, "haiku"):
		return config.AnthropicDefaultHaikuModel
	case strings.Contains(core, "opus"):
		return config.AnthropicDefaultOpusModel
	}
	return ""
}

// stripDecorations removes a "#tag" suffix and any region prefix in front of
// the "anthropic." vendor segment.
func stripDecorations(model string) string {
	if i := strings.IndexByte(model, '#'); i >= 0 {
		model = model[:i]
	}
	if i := strings.Index(model, "anthropic."); i > 0 {
		model = model[i:]
	}
	return model
}
