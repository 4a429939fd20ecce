package accounting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybridge-ai/bedrock-gateway/common/helper"
	"github.com/skybridge-ai/bedrock-gateway/model"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// recordingDB captures every write so tests can replay the pipeline.
type recordingDB struct {
	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput

	// keyRowAfterBudget is returned as ALL_NEW from the budget counter update.
	keyRowAfterBudget *model.KeyContext
}

func (r *recordingDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{}, nil
}

func (r *recordingDB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	r.puts = append(r.puts, in)
	return &dynamodb.PutItemOutput{}, nil
}

func (r *recordingDB) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	r.updates = append(r.updates, in)
	if *in.TableName == model.TableAPIKeys() && strings.Contains(*in.UpdateExpression, "ADD budget_used_total") {
		item, err := attributevalue.MarshalMap(r.keyRowAfterBudget)
		if err != nil {
			return nil, err
		}
		return &dynamodb.UpdateItemOutput{Attributes: item}, nil
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (r *recordingDB) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}

func (r *recordingDB) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return &dynamodb.QueryOutput{}, nil
}

func (r *recordingDB) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{}, nil
}

func (r *recordingDB) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, nil
}

func (r *recordingDB) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return &dynamodb.CreateTableOutput{}, nil
}

func useRecordingDB(t *testing.T, db *recordingDB) {
	t.Helper()
	prev := model.DB
	model.DB = db
	model.FlushMetaCache()
	t.Cleanup(func() { model.DB = prev })
}

func (r *recordingDB) updatesFor(table string) []*dynamodb.UpdateItemInput {
	var out []*dynamodb.UpdateItemInput
	for _, u := range r.updates {
		if *u.TableName == table {
			out = append(out, u)
		}
	}
	return out
}

func testEntry(key *model.KeyContext, usage relaymodel.Usage) Entry {
	return Entry{
		Key:           key,
		RequestID:     "req-123",
		ClientModel:   "claude-3-5-sonnet-20241022",
		ResolvedModel: "anthropic.claude-3-5-sonnet-20241022-v2:0",
		Usage:         usage,
		Success:       true,
		Duration:      420 * time.Millisecond,
	}
}

func TestRecordPipelineWrites(t *testing.T) {
	db := &recordingDB{keyRowAfterBudget: &model.KeyContext{
		APIKey:         "sk-abc",
		MonthlyBudget:  100,
		BudgetUsedMTD:  0.5,
		BudgetMTDMonth: helper.MonthString(helper.Now()),
		Active:         true,
	}}
	useRecordingDB(t, db)

	key := &model.KeyContext{APIKey: "sk-abc", UserID: "alice", MonthlyBudget: 100, Active: true}
	record(context.Background(), testEntry(key, relaymodel.Usage{InputTokens: 1200, OutputTokens: 340}))

	// One usage row, carrying the client-facing model name.
	require.Len(t, db.puts, 1)
	put := db.puts[0]
	assert.Equal(t, model.TableUsage(), *put.TableName)
	var rec model.UsageRecord
	require.NoError(t, attributevalue.UnmarshalMap(put.Item, &rec))
	assert.Equal(t, "sk-abc", rec.APIKey)
	assert.Equal(t, "req-123", rec.RequestID)
	assert.Equal(t, "claude-3-5-sonnet-20241022", rec.Model)
	assert.Equal(t, int64(1200), rec.InputTokens)
	assert.Equal(t, int64(340), rec.OutputTokens)
	assert.True(t, rec.Success)
	assert.Equal(t, int64(420), rec.DurationMs)

	// Aggregate counters accrue server-side.
	aggs := db.updatesFor(model.TableUsageStats())
	require.Len(t, aggs, 1)
	assert.Contains(t, *aggs[0].UpdateExpression, "if_not_exists(total_input_tokens, :zero) + :in")
	assert.Contains(t, *aggs[0].UpdateExpression, "total_requests")

	// Budget counters accrue on the key; under budget means no deactivation.
	keyUpdates := db.updatesFor(model.TableAPIKeys())
	require.Len(t, keyUpdates, 1)
	assert.Contains(t, *keyUpdates[0].UpdateExpression, "ADD budget_used_total :cost, budget_used_mtd :cost")
	cost := keyUpdates[0].ExpressionAttributeValues[":cost"].(*types.AttributeValueMemberN)
	assert.NotEqual(t, "0", cost.Value, "builtin pricing should yield a non-zero cost")
}

func TestRecordDeactivatesOnBudgetCrossing(t *testing.T) {
	db := &recordingDB{keyRowAfterBudget: &model.KeyContext{
		APIKey:         "sk-abc",
		MonthlyBudget:  1.00,
		BudgetUsedMTD:  1.01,
		BudgetMTDMonth: helper.MonthString(helper.Now()),
		Active:         true,
	}}
	useRecordingDB(t, db)

	key := &model.KeyContext{APIKey: "sk-abc", UserID: "alice", MonthlyBudget: 1.00, Active: true}
	record(context.Background(), testEntry(key, relaymodel.Usage{InputTokens: 4000, OutputTokens: 100}))

	keyUpdates := db.updatesFor(model.TableAPIKeys())
	require.Len(t, keyUpdates, 2, "budget counters then deactivation")
	deact := keyUpdates[1]
	assert.Contains(t, *deact.UpdateExpression, "SET active = :false, deactivation_reason = :reason")
	assert.Contains(t, *deact.ConditionExpression, "budget_used_mtd >= monthly_budget")
	reason := deact.ExpressionAttributeValues[":reason"].(*types.AttributeValueMemberS)
	assert.Equal(t, model.DeactivationBudgetExceeded, reason.Value)
}

func TestRecordNoDeactivationUnderBudget(t *testing.T) {
	db := &recordingDB{keyRowAfterBudget: &model.KeyContext{
		APIKey:         "sk-abc",
		MonthlyBudget:  1.00,
		BudgetUsedMTD:  0.10,
		BudgetMTDMonth: helper.MonthString(helper.Now()),
		Active:         true,
	}}
	useRecordingDB(t, db)

	key := &model.KeyContext{APIKey: "sk-abc", UserID: "alice", MonthlyBudget: 1.00, Active: true}
	record(context.Background(), testEntry(key, relaymodel.Usage{InputTokens: 10, OutputTokens: 10}))

	require.Len(t, db.updatesFor(model.TableAPIKeys()), 1)
}

func TestRecordUnlimitedKeySkipsDeactivation(t *testing.T) {
	db := &recordingDB{keyRowAfterBudget: &model.KeyContext{
		APIKey:         "sk-abc",
		MonthlyBudget:  0, // no budget configured
		BudgetUsedMTD:  250,
		BudgetMTDMonth: helper.MonthString(helper.Now()),
		Active:         true,
	}}
	useRecordingDB(t, db)

	key := &model.KeyContext{APIKey: "sk-abc", UserID: "alice", Active: true}
	record(context.Background(), testEntry(key, relaymodel.Usage{InputTokens: 10, OutputTokens: 10}))

	require.Len(t, db.updatesFor(model.TableAPIKeys()), 1)
}

func TestRecordSkipsSyntheticKeys(t *testing.T) {
	db := &recordingDB{}
	useRecordingDB(t, db)

	key := &model.KeyContext{APIKey: "sk-master", UserID: "master", Active: true, Synthetic: true}
	Record(context.Background(), testEntry(key, relaymodel.Usage{InputTokens: 10, OutputTokens: 10}))

	assert.Empty(t, db.puts)
	assert.Empty(t, db.updates)
}

func TestRecordUnknownModelZeroCost(t *testing.T) {
	db := &recordingDB{keyRowAfterBudget: &model.KeyContext{
		APIKey:         "sk-abc",
		BudgetMTDMonth: helper.MonthString(helper.Now()),
		Active:         true,
	}}
	useRecordingDB(t, db)

	entry := testEntry(&model.KeyContext{APIKey: "sk-abc", UserID: "alice", Active: true},
		relaymodel.Usage{InputTokens: 50, OutputTokens: 5})
	entry.ResolvedModel = "mistral.mistral-large-2402-v1:0"
	record(context.Background(), entry)

	keyUpdates := db.updatesFor(model.TableAPIKeys())
	require.Len(t, keyUpdates, 1)
	cost := keyUpdates[0].ExpressionAttributeValues[":cost"].(*types.AttributeValueMemberN)
	assert.Equal(t, "0", cost.Value)
}

func TestRecordFailedRequestKeepsErrorMessage(t *testing.T) {
	db := &recordingDB{keyRowAfterBudget: &model.KeyContext{
		APIKey:         "sk-abc",
		BudgetMTDMonth: helper.MonthString(helper.Now()),
		Active:         true,
	}}
	useRecordingDB(t, db)

	entry := testEntry(&model.KeyContext{APIKey: "sk-abc", UserID: "alice", Active: true},
		relaymodel.Usage{InputTokens: 12})
	entry.Success = false
	entry.ErrorMessage = "upstream throttled"
	record(context.Background(), entry)

	require.Len(t, db.puts, 1)
	var rec model.UsageRecord
	require.NoError(t, attributevalue.UnmarshalMap(db.puts[0].Item, &rec))
	assert.False(t, rec.Success)
	assert.Equal(t, "upstream throttled", rec.ErrorMessage)
}
