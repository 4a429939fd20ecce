package model

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UsageRecord is one row of the usage table, one per completed request. The
// ISO8601 timestamp doubles as the sort key so per-key history reads back in
// time order.
type UsageRecord struct {
	APIKey            string `dynamodbav:"api_key" json:"api_key"`
	Timestamp         string `dynamodbav:"timestamp" json:"timestamp"`
	RequestID         string `dynamodbav:"request_id" json:"request_id"`
	Model             string `dynamodbav:"model" json:"model"`
	InputTokens       int64  `dynamodbav:"input_tokens" json:"input_tokens"`
	OutputTokens      int64  `dynamodbav:"output_tokens" json:"output_tokens"`
	CachedInputTokens int64  `dynamodbav:"cached_input_tokens" json:"cached_input_tokens"`
	CacheWriteTokens  int64  `dynamodbav:"cache_write_tokens" json:"cache_write_tokens"`
	Success           bool   `dynamodbav:"success" json:"success"`
	DurationMs        int64  `dynamodbav:"duration_ms" json:"duration_ms"`
	ErrorMessage      string `dynamodbav:"error_message,omitempty" json:"error_message,omitempty"`
}

// KeyUsageAggregate is the usage-stats row: running totals per key.
type KeyUsageAggregate struct {
	APIKey                 string `dynamodbav:"api_key" json:"api_key"`
	TotalInputTokens       int64  `dynamodbav:"total_input_tokens" json:"total_input_tokens"`
	TotalOutputTokens      int64  `dynamodbav:"total_output_tokens" json:"total_output_tokens"`
	TotalCachedInputTokens int64  `dynamodbav:"total_cached_input_tokens" json:"total_cached_input_tokens"`
	TotalCacheWriteTokens  int64  `dynamodbav:"total_cache_write_tokens" json:"total_cache_write_tokens"`
	TotalRequests          int64  `dynamodbav:"total_requests" json:"total_requests"`
	LastAggregatedAt       string `dynamodbav:"last_aggregated_timestamp" json:"last_aggregated_timestamp"`
}

// PutUsageRecord appends one request's usage row.
func PutUsageRecord(ctx context.Context, rec *UsageRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return errors.Wrap(err, "marshal usage record")
	}
	return withRetry(ctx, "put usage record", func(ctx context.Context) error {
		_, err := DB.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(TableUsage()),
			Item:      item,
		})
		return err
	})
}

// AddUsageAggregate folds one record into the per-key running totals. Missing
// counters start from zero, so the first write for a key creates its row; the
// arithmetic runs server-side, never read-modify-write.
func AddUsageAggregate(ctx context.Context, rec *UsageRecord) error {
	return withRetry(ctx, "add usage aggregate", func(ctx context.Context) error {
		_, err := DB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(TableUsageStats()),
			Key:       map[string]types.AttributeValue{"api_key": stringAttr(rec.APIKey)},
			UpdateExpression: aws.String(
				"SET total_input_tokens = if_not_exists(total_input_tokens, :zero) + :in, " +
					"total_output_tokens = if_not_exists(total_output_tokens, :zero) + :out, " +
					"total_cached_input_tokens = if_not_exists(total_cached_input_tokens, :zero) + :cached, " +
					"total_cache_write_tokens = if_not_exists(total_cache_write_tokens, :zero) + :cw, " +
					"total_requests = if_not_exists(total_requests, :zero) + :one, " +
					"last_aggregated_timestamp = :ts"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":zero":   intAttr(0),
				":one":    intAttr(1),
				":in":     intAttr(rec.InputTokens),
				":out":    intAttr(rec.OutputTokens),
				":cached": intAttr(rec.CachedInputTokens),
				":cw":     intAttr(rec.CacheWriteTokens),
				":ts":     stringAttr(rec.Timestamp),
			},
		})
		return err
	})
}

// GetUsageAggregate reads one key's running totals. A key that has never
// completed a request has no row; that comes back as zeroed totals, not an
// error.
func GetUsageAggregate(ctx context.Context, apiKey string) (*KeyUsageAggregate, error) {
	agg := &KeyUsageAggregate{APIKey: apiKey}
	err := withRetry(ctx, "get usage aggregate", func(ctx context.Context) error {
		out, err := DB.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(TableUsageStats()),
			Key:       map[string]types.AttributeValue{"api_key": stringAttr(apiKey)},
		})
		if err != nil {
			return err
		}
		if len(out.Item) == 0 {
			return nil
		}
		return errors.Wrap(attributevalue.UnmarshalMap(out.Item, agg), "unmarshal usage aggregate")
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// QueryRecentUsage returns the newest usage rows for a key, most recent first.
func QueryRecentUsage(ctx context.Context, apiKey string, limit int32) ([]UsageRecord, error) {
	var records []UsageRecord
	err := withRetry(ctx, "query usage", func(ctx context.Context) error {
		out, err := DB.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(TableUsage()),
			KeyConditionExpression: aws.String("api_key = :key"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":key": stringAttr(apiKey),
			},
			ScanIndexForward: aws.Bool(false),
			Limit:            aws.Int32(limit),
		})
		if err != nil {
			return err
		}
		records = records[:0]
		return errors.Wrap(attributevalue.UnmarshalListOfMaps(out.Items, &records), "unmarshal usage rows")
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
