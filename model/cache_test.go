package model

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetKeyWithoutRedisHitsStore(t *testing.T) {
	calls := 0
	useFakeDB(t, &fakeDB{
		getItem: func(ctx context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			calls++
			return &dynamodb.GetItemOutput{Item: keyAttrs(t, &KeyContext{APIKey: "sk-abc", Active: true})}, nil
		},
	})

	key, err := CacheGetKey(context.Background(), "sk-abc")
	require.NoError(t, err)
	assert.True(t, key.Active)
	assert.Equal(t, 1, calls)

	_, err = CacheGetKey(context.Background(), "sk-abc")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "without redis every lookup reads the store")
}

func TestCacheGetModelMappingCachesHit(t *testing.T) {
	FlushMetaCache()
	t.Cleanup(FlushMetaCache)

	calls := 0
	useFakeDB(t, &fakeDB{
		getItem: func(ctx context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			calls++
			return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
				"anthropic_model_id": &types.AttributeValueMemberS{Value: "claude-3-5-sonnet-20241022"},
				"bedrock_model_id":   &types.AttributeValueMemberS{Value: "anthropic.claude-3-5-sonnet-20241022-v2:0"},
			}}, nil
		},
	})

	for range 3 {
		m, err := CacheGetModelMapping(context.Background(), "claude-3-5-sonnet-20241022")
		require.NoError(t, err)
		assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0", m.BedrockModelID)
	}
	assert.Equal(t, 1, calls)
}

func TestCacheGetModelMappingCachesMiss(t *testing.T) {
	FlushMetaCache()
	t.Cleanup(FlushMetaCache)

	calls := 0
	useFakeDB(t, &fakeDB{
		getItem: func(ctx context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			calls++
			return &dynamodb.GetItemOutput{}, nil
		},
	})

	for range 3 {
		_, err := CacheGetModelMapping(context.Background(), "claude-unmapped")
		require.ErrorIs(t, err, ErrMappingNotFound)
	}
	assert.Equal(t, 1, calls, "negative lookups are cached too")
}

func TestCacheListModelPricing(t *testing.T) {
	FlushMetaCache()
	t.Cleanup(FlushMetaCache)

	calls := 0
	useFakeDB(t, &fakeDB{
		scan: func(ctx context.Context, in *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
			calls++
			return &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{{
				"model_id":           &types.AttributeValueMemberS{Value: "anthropic.claude-3-5-sonnet-20241022-v2:0"},
				"input_price_per_1m": &types.AttributeValueMemberN{Value: "3"},
			}}}, nil
		},
	})

	rows, err := CacheListModelPricing(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// The point lookup rides the warmed listing.
	p, err := CacheGetModelPricing(context.Background(), "anthropic.claude-3-5-sonnet-20241022-v2:0")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, p.InputPricePer1M, 1e-9)

	_, err = CacheGetModelPricing(context.Background(), "absent-model")
	require.ErrorIs(t, err, ErrPricingNotFound)

	assert.Equal(t, 1, calls)
}
