package model

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutUsageRecord(t *testing.T) {
	var gotTable string
	var gotItem map[string]types.AttributeValue
	useFakeDB(t, &fakeDB{
		putItem: func(ctx context.Context, in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			gotTable = *in.TableName
			gotItem = in.Item
			return &dynamodb.PutItemOutput{}, nil
		},
	})

	rec := &UsageRecord{
		APIKey:       "sk-abc",
		Timestamp:    "2026-08-25T10:00:00.000Z",
		RequestID:    "req-1",
		Model:        "anthropic.claude-3-5-sonnet-20241022-v2:0",
		InputTokens:  12,
		OutputTokens: 6,
		Success:      true,
		DurationMs:   431,
	}
	require.NoError(t, PutUsageRecord(context.Background(), rec))

	assert.Equal(t, TableUsage(), gotTable)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "sk-abc"}, gotItem["api_key"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2026-08-25T10:00:00.000Z"}, gotItem["timestamp"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "12"}, gotItem["input_tokens"])
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: true}, gotItem["success"])
	// Zero-valued optional attributes still persist; only error_message is elided.
	assert.Equal(t, &types.AttributeValueMemberN{Value: "0"}, gotItem["cached_input_tokens"])
	assert.NotContains(t, gotItem, "error_message")
}

func TestAddUsageAggregateExpression(t *testing.T) {
	var gotExpr string
	var gotValues map[string]types.AttributeValue
	useFakeDB(t, &fakeDB{
		updateItem: func(ctx context.Context, in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			assert.Equal(t, TableUsageStats(), *in.TableName)
			gotExpr = *in.UpdateExpression
			gotValues = in.ExpressionAttributeValues
			return &dynamodb.UpdateItemOutput{}, nil
		},
	})

	rec := &UsageRecord{
		APIKey:            "sk-abc",
		Timestamp:         "2026-08-25T10:00:00.000Z",
		InputTokens:       100,
		OutputTokens:      40,
		CachedInputTokens: 25,
		CacheWriteTokens:  5,
	}
	require.NoError(t, AddUsageAggregate(context.Background(), rec))

	// Counters start from zero on first touch and accumulate server-side.
	assert.Contains(t, gotExpr, "total_input_tokens = if_not_exists(total_input_tokens, :zero) + :in")
	assert.Contains(t, gotExpr, "total_requests = if_not_exists(total_requests, :zero) + :one")
	assert.Contains(t, gotExpr, "last_aggregated_timestamp = :ts")
	assert.Equal(t, &types.AttributeValueMemberN{Value: "100"}, gotValues[":in"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "40"}, gotValues[":out"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "25"}, gotValues[":cached"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "5"}, gotValues[":cw"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: rec.Timestamp}, gotValues[":ts"])
}

func TestGetUsageAggregateMissIsZeroed(t *testing.T) {
	useFakeDB(t, &fakeDB{})

	agg, err := GetUsageAggregate(context.Background(), "sk-new")
	require.NoError(t, err)
	assert.Equal(t, "sk-new", agg.APIKey)
	assert.Zero(t, agg.TotalRequests)
	assert.Zero(t, agg.TotalInputTokens)
}

func TestQueryRecentUsageNewestFirst(t *testing.T) {
	useFakeDB(t, &fakeDB{
		query: func(ctx context.Context, in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			require.NotNil(t, in.ScanIndexForward)
			assert.False(t, *in.ScanIndexForward)
			assert.Equal(t, int32(10), *in.Limit)
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
				{
					"api_key":   &types.AttributeValueMemberS{Value: "sk-abc"},
					"timestamp": &types.AttributeValueMemberS{Value: "2026-08-25T10:00:01.000Z"},
				},
				{
					"api_key":   &types.AttributeValueMemberS{Value: "sk-abc"},
					"timestamp": &types.AttributeValueMemberS{Value: "2026-08-25T10:00:00.000Z"},
				},
			}}, nil
		},
	})

	rows, err := QueryRecentUsage(context.Background(), "sk-abc", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Greater(t, rows[0].Timestamp, rows[1].Timestamp)
}
