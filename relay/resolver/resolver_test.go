package resolver

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/model"
)

// mappingDB serves GetItem from a static anthropic_model_id -> bedrock id map
// and satisfies the rest of model.DynamoAPI with empty replies.
type mappingDB struct {
	rows map[string]string
}

func (f *mappingDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := in.Key["anthropic_model_id"].(*types.AttributeValueMemberS).Value
	upstream, ok := f.rows[id]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"anthropic_model_id": &types.AttributeValueMemberS{Value: id},
		"bedrock_model_id":   &types.AttributeValueMemberS{Value: upstream},
	}}, nil
}

func (f *mappingDB) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (f *mappingDB) UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *mappingDB) DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *mappingDB) Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return &dynamodb.QueryOutput{}, nil
}

func (f *mappingDB) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{}, nil
}

func (f *mappingDB) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, nil
}

func (f *mappingDB) CreateTable(context.Context, *dynamodb.CreateTableInput, ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return &dynamodb.CreateTableOutput{}, nil
}

func setupResolver(t *testing.T, rows map[string]string) {
	t.Helper()
	prevDB := model.DB
	model.DB = &mappingDB{rows: rows}
	model.FlushMetaCache()
	prevGlobal := config.AnthropicDefaultModel
	prevSonnet := config.AnthropicDefaultSonnetModel
	prevHaiku := config.AnthropicDefaultHaikuModel
	prevOpus := config.AnthropicDefaultOpusModel
	config.AnthropicDefaultModel = ""
	config.AnthropicDefaultSonnetModel = ""
	config.AnthropicDefaultHaikuModel = ""
	config.AnthropicDefaultOpusModel = ""
	t.Cleanup(func() {
		model.DB = prevDB
		model.FlushMetaCache()
		config.AnthropicDefaultModel = prevGlobal
		config.AnthropicDefaultSonnetModel = prevSonnet
		config.AnthropicDefaultHaikuModel = prevHaiku
		config.AnthropicDefaultOpusModel = prevOpus
	})
}

func TestResolveGlobalOverrideWinsEverything(t *testing.T) {
	setupResolver(t, map[string]string{"claude-3-5-sonnet-20241022": "mapped.id"})
	config.AnthropicDefaultModel = "anthropic.claude-sonnet-4-20250514-v1:0"
	config.AnthropicDefaultSonnetModel = "should-not-apply"

	for _, in := range []string{
		"claude-3-5-sonnet-20241022",
		"gpt-4o",
		"us.anthropic.claude-3-5-haiku-20241022-v1:0",
	} {
		assert.Equal(t, "anthropic.claude-sonnet-4-20250514-v1:0", Resolve(context.Background(), in))
	}
}

func TestResolveFamilyOverrides(t *testing.T) {
	setupResolver(t, nil)
	config.AnthropicDefaultSonnetModel = "anthropic.claude-sonnet-4-20250514-v1:0"
	config.AnthropicDefaultHaikuModel = "anthropic.claude-3-5-haiku-20241022-v1:0"

	tests := []struct {
		in   string
		want string
	}{
		{"claude-3-5-sonnet-20241022", "anthropic.claude-sonnet-4-20250514-v1:0"},
		{"anthropic.claude-3-5-sonnet-20241022-v2:0", "anthropic.claude-sonnet-4-20250514-v1:0"},
		{"us.anthropic.claude-3-5-sonnet-20241022-v2:0", "anthropic.claude-sonnet-4-20250514-v1:0"},
		{"global.anthropic.claude-sonnet-4-20250514-v1:0#beta", "anthropic.claude-sonnet-4-20250514-v1:0"},
		{"claude-3-5-haiku-20241022", "anthropic.claude-3-5-haiku-20241022-v1:0"},
		// No opus override configured: the ladder continues to the baked-in table.
		{"claude-3-opus-20240229", "anthropic.claude-3-opus-20240229-v1:0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(context.Background(), tt.in), "input %q", tt.in)
	}
}

func TestResolvePersistedMappingBeatsBuiltin(t *testing.T) {
	setupResolver(t, map[string]string{
		"claude-3-5-sonnet-20241022": "eu.anthropic.claude-3-5-sonnet-20241022-v2:0",
	})

	got := Resolve(context.Background(), "claude-3-5-sonnet-20241022")
	assert.Equal(t, "eu.anthropic.claude-3-5-sonnet-20241022-v2:0", got)
}

func TestResolveBuiltinTable(t *testing.T) {
	setupResolver(t, nil)

	assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0",
		Resolve(context.Background(), "claude-3-5-sonnet-20241022"))
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0",
		Resolve(context.Background(), "claude-3-haiku-20240307"))
}

func TestResolvePassthrough(t *testing.T) {
	setupResolver(t, nil)

	for _, in := range []string{
		"anthropic.claude-3-5-sonnet-20241022-v2:0",
		"us.anthropic.claude-3-5-sonnet-20241022-v2:0#prod",
		"mistral.mistral-large-2402-v1:0",
	} {
		assert.Equal(t, in, Resolve(context.Background(), in), "unknown ids pass through")
	}
}

func TestBuiltinModelsSortedAndComplete(t *testing.T) {
	ids := BuiltinModels()
	require.NotEmpty(t, ids)
	assert.IsIncreasing(t, ids)

	upstream, ok := BuiltinUpstream("claude-3-5-sonnet-20241022")
	require.True(t, ok)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0", upstream)
}
