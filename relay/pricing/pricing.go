package pricing

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/skybridge-ai/bedrock-gateway/common/logger"
	"github.com/skybridge-ai/bedrock-gateway/model"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// Prices holds USD per million tokens for the four billed token categories.
type Prices struct {
	Input      float64
	Output     float64
	CacheRead  float64
	CacheWrite float64
}

// builtin carries the published Bedrock Claude prices, keyed by undecorated
// upstream id. Persisted pricing rows override these; the table only keeps
// billing alive when the pricing table has not been seeded.
var builtin = map[string]Prices{
	"anthropic.claude-instant-v1":               {Input: 0.8, Output: 2.4},
	"anthropic.claude-v2":                       {Input: 8, Output: 24},
	"anthropic.claude-v2:1":                     {Input: 8, Output: 24},
	"anthropic.claude-3-haiku-20240307-v1:0":    {Input: 0.25, Output: 1.25, CacheRead: 0.03, CacheWrite: 0.3},
	"anthropic.claude-3-sonnet-20240229-v1:0":   {Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75},
	"anthropic.claude-3-opus-20240229-v1:0":     {Input: 15, Output: 75, CacheRead: 1.5, CacheWrite: 18.75},
	"anthropic.claude-3-5-sonnet-20240620-v1:0": {Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75},
	"anthropic.claude-3-5-sonnet-20241022-v2:0": {Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75},
	"anthropic.claude-3-5-haiku-20241022-v1:0":  {Input: 0.8, Output: 4, CacheRead: 0.08, CacheWrite: 1},
	"anthropic.claude-3-7-sonnet-20250219-v1:0": {Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75},
	"anthropic.claude-sonnet-4-20250514-v1:0":   {Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75},
	"anthropic.claude-sonnet-4-5-20250929-v1:0": {Input: 3, Output: 15, CacheRead: 0.3, CacheWrite: 3.75},
	"anthropic.claude-opus-4-20250514-v1:0":     {Input: 15, Output: 75, CacheRead: 1.5, CacheWrite: 18.75},
	"anthropic.claude-opus-4-1-20250805-v1:0":   {Input: 15, Output: 75, CacheRead: 1.5, CacheWrite: 18.75},
	"anthropic.claude-haiku-4-5-20251001-v1:0":  {Input: 1, Output: 5, CacheRead: 0.1, CacheWrite: 1.25},
}

// Lookup resolves prices for an upstream model id: the persisted row when one
// exists and is active, the baked-in table otherwise. Decorated ids (region
// prefix, "#tag") fall back to their undecorated core.
func Lookup(ctx context.Context, modelID string) (Prices, bool) {
	for _, id := range candidates(modelID) {
		row, err := model.CacheGetModelPricing(ctx, id)
		if err == nil {
			if row.Status != "" && row.Status != model.PricingStatusActive {
				continue
			}
			return Prices{
				Input:      row.InputPricePer1M,
				Output:     row.OutputPricePer1M,
				CacheRead:  row.CacheReadPricePer1M,
				CacheWrite: row.CacheWritePricePer1M,
			}, true
		}
		if !errors.Is(err, model.ErrPricingNotFound) {
			logger.Logger.Warn("pricing lookup failed, falling back to builtin prices",
				zap.String("model", id), zap.Error(err))
			break
		}
	}

	for _, id := range candidates(modelID) {
		if p, ok := builtin[id]; ok {
			return p, true
		}
	}
	return Prices{}, false
}

// Cost computes the USD cost of one request. A model without prices costs
// zero; that is logged once per request rather than failing accounting.
func Cost(ctx context.Context, modelID string, usage relaymodel.Usage) float64 {
	p, ok := Lookup(ctx, modelID)
	if !ok {
		logger.Logger.Warn("no pricing for model, recording zero cost", zap.String("model", modelID))
		return 0
	}
	return (float64(usage.InputTokens)*p.Input +
		float64(usage.OutputTokens)*p.Output +
		float64(usage.CacheReadTokens)*p.CacheRead +
		float64(usage.CacheWriteTokens)*p.CacheWrite) / 1e6
}

// candidates returns the lookup ids for a possibly decorated model id, most
// specific first.
func candidates(modelID string) []string {
	ids := []string{modelID}
	core := modelID
	if i := strings.IndexByte(core, '#'); i >= 0 {
		core = core[:i]
	}
	if i := strings.Index(core, "anthropic."); i > 0 {
		core = core[i:]
	}
	if core != modelID {
		ids = append(ids, core)
	}
	return ids
}
