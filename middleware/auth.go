package middleware

import (
	"strings"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/ctxkey"
	"github.com/skybridge-ai/bedrock-gateway/common/helper"
	"github.com/skybridge-ai/bedrock-gateway/model"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// APIKeyAuth resolves the caller's credential into a KeyContext and attaches
// it under ctxkey.KeyContext. Resolution order: master credential, the
// process's ephemeral credential, then the key store. Keys deactivated for
// budget overrun are reactivated in place once their exhausted month has
// passed; every other inactive key is rejected.
func APIKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.RequireAPIKey {
			c.Set(ctxkey.KeyContext, openKeyContext())
			c.Next()
			return
		}

		apiKey := extractAPIKey(c)
		if apiKey == "" {
			AbortWithClaudeError(c, relaymodel.NewAuthenticationError(
				"missing API key: send Authorization: Bearer <key> or x-api-key: <key>"))
			return
		}

		if config.MasterAPIKey != "" && apiKey == config.MasterAPIKey {
			c.Set(ctxkey.KeyContext, &model.KeyContext{
				APIKey:    apiKey,
				UserID:    "master",
				Tier:      model.TierPriority,
				Active:    true,
				Synthetic: true,
			})
			c.Next()
			return
		}
		if apiKey == config.EphemeralAPIKey {
			c.Set(ctxkey.KeyContext, &model.KeyContext{
				APIKey:    apiKey,
				UserID:    "ephemeral",
				Tier:      model.TierDefault,
				Active:    true,
				Synthetic: true,
			})
			c.Next()
			return
		}

		key, err := model.CacheGetKey(c.Request.Context(), apiKey)
		if err != nil {
			if errors.Is(err, model.ErrKeyNotFound) {
				AbortWithClaudeError(c, relaymodel.NewAuthenticationError("invalid API key"))
				return
			}
			gmw.GetLogger(c).Error("key store lookup failed", zap.Error(err))
			AbortWithClaudeError(c, relaymodel.NewInternalError(err))
			return
		}

		if !key.Active {
			key = reactivateForNewMonth(c, key)
			if key == nil {
				AbortWithClaudeError(c, relaymodel.NewAuthenticationError("API key is disabled"))
				return
			}
		}

		c.Set(ctxkey.KeyContext, key)
		c.Next()
	}
}

// GetKeyContext returns the KeyContext attached by APIKeyAuth, or nil when
// the guard did not run (direct handler invocation in tests).
func GetKeyContext(c *gin.Context) *model.KeyContext {
	if v, ok := c.Get(ctxkey.KeyContext); ok {
		if key, ok := v.(*model.KeyContext); ok {
			return key
		}
	}
	return nil
}

// extractAPIKey pulls the credential from Authorization: Bearer or x-api-key.
// The Authorization header wins when both are present.
func extractAPIKey(c *gin.Context) string {
	if auth := c.Request.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(c.Request.Header.Get("x-api-key"))
}

// reactivateForNewMonth flips a budget-deactivated key back on when the
// calendar month has rolled past the month that exhausted its budget.
// Returns the refreshed row when the key is usable again, nil otherwise.
// Other deactivation reasons stay sticky.
func reactivateForNewMonth(c *gin.Context, key *model.KeyContext) *model.KeyContext {
	month := helper.MonthString(helper.Now())
	if key.DeactivationReason != model.DeactivationBudgetExceeded || key.BudgetMTDMonth == month {
		return nil
	}

	ctx := c.Request.Context()
	refreshed, err := model.ReactivateKeyForNewMonth(ctx, key.APIKey, month)
	if err != nil {
		gmw.GetLogger(c).Warn("month-rollover reactivation failed",
			zap.String("user_id", key.UserID),
			zap.Error(err))
		return nil
	}
	if refreshed == nil || !refreshed.Active {
		return nil
	}
	if err := model.CacheInvalidateKey(ctx, key.APIKey); err != nil {
		gmw.GetLogger(c).Warn("key cache invalidation failed after reactivation", zap.Error(err))
	}
	gmw.GetLogger(c).Info("api key reactivated for new month",
		zap.String("user_id", refreshed.UserID),
		zap.String("month", month))
	return refreshed
}

// openKeyContext is the identity used when REQUIRE_API_KEY=false: every
// caller shares it, nothing is persisted, and the limiter is bypassed.
func openKeyContext() *model.KeyContext {
	return &model.KeyContext{
		APIKey:    "anonymous",
		UserID:    "anonymous",
		Tier:      model.TierDefault,
		Active:    true,
		Synthetic: true,
	}
}
