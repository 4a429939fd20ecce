// Package accounting persists usage and budget state after a response has
// fully left the building. Nothing here runs on the response hot path, and
// nothing here may fail the client request: every error ends in a log line
// and a metric, never a status change.
package accounting

import (
	"context"
	"time"

	"github.com/Laisky/zap"

	"github.com/skybridge-ai/bedrock-gateway/common/graceful"
	"github.com/skybridge-ai/bedrock-gateway/common/helper"
	"github.com/skybridge-ai/bedrock-gateway/common/logger"
	"github.com/skybridge-ai/bedrock-gateway/model"
	"github.com/skybridge-ai/bedrock-gateway/monitor"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
	"github.com/skybridge-ai/bedrock-gateway/relay/pricing"
)

// Entry is one finished request as the accountant sees it.
type Entry struct {
	Key *model.KeyContext

	RequestID string
	// ClientModel is the model name the caller sent; usage rows record it so
	// history reads the way the caller thinks about it.
	ClientModel string
	// ResolvedModel is the upstream id, which is what pricing is keyed on.
	ResolvedModel string

	Usage        relaymodel.Usage
	Success      bool
	ErrorMessage string
	Duration     time.Duration
}

// Record schedules the accounting pipeline for one finished request. The
// work runs in a shutdown-tracked goroutine, detached from the request's
// cancellation: a client that hangs up after the last byte still pays for it.
func Record(ctx context.Context, entry Entry) {
	monitor.RecordTokens(entry.ClientModel, int64(entry.Usage.InputTokens), int64(entry.Usage.OutputTokens))

	if entry.Key == nil || entry.Key.Synthetic {
		return
	}

	graceful.GoCritical(context.WithoutCancel(ctx), "usage accounting", func(ctx context.Context) {
		record(ctx, entry)
	})
}

func record(ctx context.Context, entry Entry) {
	now := helper.Now()
	rec := &model.UsageRecord{
		APIKey:            entry.Key.APIKey,
		Timestamp:         helper.ISO8601Timestamp(now),
		RequestID:         entry.RequestID,
		Model:             entry.ClientModel,
		InputTokens:       int64(entry.Usage.InputTokens),
		OutputTokens:      int64(entry.Usage.OutputTokens),
		CachedInputTokens: int64(entry.Usage.CacheReadTokens),
		CacheWriteTokens:  int64(entry.Usage.CacheWriteTokens),
		Success:           entry.Success,
		DurationMs:        entry.Duration.Milliseconds(),
		ErrorMessage:      entry.ErrorMessage,
	}

	if err := model.PutUsageRecord(ctx, rec); err != nil {
		monitor.UsageWriteFailures.WithLabelValues("records").Inc()
		logger.Logger.Error("usage record write failed",
			zap.Error(err),
			zap.String("request_id", entry.RequestID),
			zap.String("user_id", entry.Key.UserID))
	}
	if err := model.AddUsageAggregate(ctx, rec); err != nil {
		monitor.UsageWriteFailures.WithLabelValues("aggregates").Inc()
		logger.Logger.Error("usage aggregate update failed",
			zap.Error(err),
			zap.String("request_id", entry.RequestID),
			zap.String("user_id", entry.Key.UserID))
	}

	cost := pricing.Cost(ctx, entry.ResolvedModel, entry.Usage)
	month := helper.MonthString(now)
	post, err := model.AddKeyBudgetUsage(ctx, entry.Key.APIKey, cost, month)
	if err != nil {
		monitor.UsageWriteFailures.WithLabelValues("budget").Inc()
		logger.Logger.Error("budget counter update failed",
			zap.Error(err),
			zap.String("request_id", entry.RequestID),
			zap.String("user_id", entry.Key.UserID),
			zap.Float64("cost", cost))
		return
	}

	if post.MonthlyBudget <= 0 || post.BudgetUsedMTD < post.MonthlyBudget {
		return
	}

	// The ceiling is crossed. The conditional update re-checks the live row,
	// so two requests racing here deactivate exactly once.
	deactivated, err := model.DeactivateKeyOverBudget(ctx, entry.Key.APIKey)
	if err != nil {
		monitor.UsageWriteFailures.WithLabelValues("budget").Inc()
		logger.Logger.Error("budget deactivation failed",
			zap.Error(err),
			zap.String("user_id", entry.Key.UserID))
		return
	}
	if deactivated {
		monitor.BudgetDeactivations.Inc()
		logger.Logger.Warn("api key deactivated: monthly budget exhausted",
			zap.String("user_id", entry.Key.UserID),
			zap.String("month", month),
			zap.Float64("budget_used_mtd", post.BudgetUsedMTD),
			zap.Float64("monthly_budget", post.MonthlyBudget))
	}
	if err := model.CacheInvalidateKey(ctx, entry.Key.APIKey); err != nil {
		logger.Logger.Warn("key cache invalidation failed after deactivation", zap.Error(err))
	}
}
