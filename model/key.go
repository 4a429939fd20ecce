package model

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/skybridge-ai/bedrock-gateway/common/helper"
	"github.com/skybridge-ai/bedrock-gateway/common/random"
)

// Key tiers.
const (
	TierDefault  = "default"
	TierFlex     = "flex"
	TierPriority = "priority"
	TierReserved = "reserved"
)

// DeactivationBudgetExceeded marks keys switched off by the budget
// accountant; only this reason is eligible for month-rollover reactivation.
const DeactivationBudgetExceeded = "budget_exceeded"

var ErrKeyNotFound = errors.New("api key not found")

// KeyContext is the identity and policy snapshot carried with a request. It
// doubles as the api-keys table row; attribute names are part of the
// persisted contract.
type KeyContext struct {
	APIKey             string  `dynamodbav:"api_key" json:"api_key"`
	UserID             string  `dynamodbav:"user_id" json:"user_id"`
	Tier               string  `dynamodbav:"tier" json:"tier"`
	RateLimit          int     `dynamodbav:"rate_limit" json:"rate_limit"`
	TPMLimit           int     `dynamodbav:"tpm_limit,omitempty" json:"tpm_limit,omitempty"`
	MonthlyBudget      float64 `dynamodbav:"monthly_budget,omitempty" json:"monthly_budget,omitempty"`
	BudgetUsedTotal    float64 `dynamodbav:"budget_used_total" json:"budget_used_total"`
	BudgetUsedMTD      float64 `dynamodbav:"budget_used_mtd" json:"budget_used_mtd"`
	BudgetMTDMonth     string  `dynamodbav:"budget_mtd_month,omitempty" json:"budget_mtd_month,omitempty"`
	Active             bool    `dynamodbav:"active" json:"active"`
	DeactivationReason string  `dynamodbav:"deactivation_reason,omitempty" json:"deactivation_reason,omitempty"`
	CreatedAt          string  `dynamodbav:"created_at,omitempty" json:"created_at,omitempty"`

	// Synthetic marks contexts minted in-process (master, ephemeral, open).
	// They bypass the rate limiter and are never persisted.
	Synthetic bool `dynamodbav:"-" json:"-"`
}

// NewKeyContext mints a fresh active key with a generated sk- identifier.
func NewKeyContext(userID, tier string, rateLimit int, monthlyBudget float64) *KeyContext {
	if tier == "" {
		tier = TierDefault
	}
	return &KeyContext{
		APIKey:        random.GenerateAPIKey(),
		UserID:        userID,
		Tier:          tier,
		RateLimit:     rateLimit,
		MonthlyBudget: monthlyBudget,
		Active:        true,
		CreatedAt:     helper.ISO8601Timestamp(helper.Now()),
	}
}

// GetKey loads one key row. Returns ErrKeyNotFound on a miss.
func GetKey(ctx context.Context, apiKey string) (*KeyContext, error) {
	var key *KeyContext
	err := withRetry(ctx, "get key", func(ctx context.Context) error {
		out, err := DB.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(TableAPIKeys()),
			Key:       keyPK(apiKey),
		})
		if err != nil {
			return err
		}
		if len(out.Item) == 0 {
			key = nil
			return nil
		}
		var row KeyContext
		if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
			return errors.Wrap(err, "unmarshal key row")
		}
		key = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// CreateKey inserts a new key and refuses to overwrite an existing one.
func CreateKey(ctx context.Context, key *KeyContext) error {
	item, err := attributevalue.MarshalMap(key)
	if err != nil {
		return errors.Wrap(err, "marshal key row")
	}
	return withRetry(ctx, "create key", func(ctx context.Context) error {
		_, err := DB.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(TableAPIKeys()),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(api_key)"),
		})
		return err
	})
}

// SaveKey overwrites a key row; administrative use only.
func SaveKey(ctx context.Context, key *KeyContext) error {
	item, err := attributevalue.MarshalMap(key)
	if err != nil {
		return errors.Wrap(err, "marshal key row")
	}
	return withRetry(ctx, "save key", func(ctx context.Context) error {
		_, err := DB.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(TableAPIKeys()),
			Item:      item,
		})
		return err
	})
}

// ListKeys scans the whole key table, following pagination.
func ListKeys(ctx context.Context) ([]KeyContext, error) {
	var keys []KeyContext
	var startKey map[string]types.AttributeValue
	for {
		var out *dynamodb.ScanOutput
		err := withRetry(ctx, "list keys", func(ctx context.Context) error {
			var err error
			out, err = DB.Scan(ctx, &dynamodb.ScanInput{
				TableName:         aws.String(TableAPIKeys()),
				ExclusiveStartKey: startKey,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		var page []KeyContext
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, errors.Wrap(err, "unmarshal key rows")
		}
		keys = append(keys, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return keys, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// DeactivateKey switches a key off with the given reason.
func DeactivateKey(ctx context.Context, apiKey, reason string) error {
	return withRetry(ctx, "deactivate key", func(ctx context.Context) error {
		_, err := DB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(TableAPIKeys()),
			Key:                 keyPK(apiKey),
			UpdateExpression:    aws.String("SET active = :false, deactivation_reason = :reason"),
			ConditionExpression: aws.String("attribute_exists(api_key)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":false":  &types.AttributeValueMemberBOOL{Value: false},
				":reason": &types.AttributeValueMemberS{Value: reason},
			},
		})
		return err
	})
}

// ReactivateKeyForNewMonth flips a budget-deactivated key back on once its
// exhausted month has passed: active=true, MTD counter zeroed, month bumped
// and the reason cleared, all in one conditional update so concurrent
// requests cannot double-apply it. When the condition no longer holds
// (another request won the race, or the key changed) the fresh row is
// fetched and returned instead.
func ReactivateKeyForNewMonth(ctx context.Context, apiKey, currentMonth string) (*KeyContext, error) {
	var updated *KeyContext
	err := withRetry(ctx, "reactivate key", func(ctx context.Context) error {
		out, err := DB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(TableAPIKeys()),
			Key:       keyPK(apiKey),
			UpdateExpression: aws.String(
				"SET active = :true, budget_used_mtd = :zero, budget_mtd_month = :month REMOVE deactivation_reason"),
			ConditionExpression: aws.String(
				"active = :false AND deactivation_reason = :reason AND budget_mtd_month <> :month"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":true":   &types.AttributeValueMemberBOOL{Value: true},
				":false":  &types.AttributeValueMemberBOOL{Value: false},
				":zero":   &types.AttributeValueMemberN{Value: "0"},
				":month":  &types.AttributeValueMemberS{Value: currentMonth},
				":reason": &types.AttributeValueMemberS{Value: DeactivationBudgetExceeded},
			},
			ReturnValues: types.ReturnValueAllNew,
		})
		if err != nil {
			return err
		}
		var row KeyContext
		if err := attributevalue.UnmarshalMap(out.Attributes, &row); err != nil {
			return errors.Wrap(err, "unmarshal key row")
		}
		updated = &row
		return nil
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return GetKey(ctx, apiKey)
		}
		return nil, err
	}
	return updated, nil
}

// AddKeyBudgetUsage applies one request's cost to the key counters and
// returns the post-update row. The lifetime total always accumulates; the
// month-to-date counter accumulates within the current month and restarts on
// rollover. The month guard makes the rollover race-free: the same-month
// branch is conditioned on the stored month, the rollover branch on the
// month being stale, and a loser of either race retries the other branch.
func AddKeyBudgetUsage(ctx context.Context, apiKey string, cost float64, currentMonth string) (*KeyContext, error) {
	costAttr := &types.AttributeValueMemberN{Value: formatFloat(cost)}
	monthAttr := &types.AttributeValueMemberS{Value: currentMonth}

	for attempt := 0; attempt < 3; attempt++ {
		// Same-month fast path.
		row, err := updateKeyReturning(ctx, "add budget usage", &dynamodb.UpdateItemInput{
			TableName:           aws.String(TableAPIKeys()),
			Key:                 keyPK(apiKey),
			UpdateExpression:    aws.String("ADD budget_used_total :cost, budget_used_mtd :cost"),
			ConditionExpression: aws.String("budget_mtd_month = :month"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":cost":  costAttr,
				":month": monthAttr,
			},
			ReturnValues: types.ReturnValueAllNew,
		})
		if err == nil {
			return row, nil
		}
		if !isConditionalCheckFailed(err) {
			return nil, err
		}

		// Month rollover: restart the MTD counter at this cost.
		row, err = updateKeyReturning(ctx, "roll budget month", &dynamodb.UpdateItemInput{
			TableName: aws.String(TableAPIKeys()),
			Key:       keyPK(apiKey),
			UpdateExpression: aws.String(
				"ADD budget_used_total :cost SET budget_used_mtd = :cost, budget_mtd_month = :month"),
			ConditionExpression: aws.String(
				"attribute_not_exists(budget_mtd_month) OR budget_mtd_month <> :month"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":cost":  costAttr,
				":month": monthAttr,
			},
			ReturnValues: types.ReturnValueAllNew,
		})
		if err == nil {
			return row, nil
		}
		if !isConditionalCheckFailed(err) {
			return nil, err
		}
		// A concurrent writer rolled the month first; take the fast path.
	}
	return nil, errors.Errorf("budget update for key did not converge")
}

// DeactivateKeyOverBudget switches the key off when its month-to-date spend
// reached the configured ceiling. The condition re-reads the live counters,
// so the check-and-set is atomic and idempotent; it reports whether this call
// performed the deactivation.
func DeactivateKeyOverBudget(ctx context.Context, apiKey string) (bool, error) {
	err := withRetry(ctx, "deactivate key over budget", func(ctx context.Context) error {
		_, err := DB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:        aws.String(TableAPIKeys()),
			Key:              keyPK(apiKey),
			UpdateExpression: aws.String("SET active = :false, deactivation_reason = :reason"),
			ConditionExpression: aws.String(
				"active = :true AND monthly_budget > :zero AND budget_used_mtd >= monthly_budget"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":false":  &types.AttributeValueMemberBOOL{Value: false},
				":true":   &types.AttributeValueMemberBOOL{Value: true},
				":zero":   &types.AttributeValueMemberN{Value: "0"},
				":reason": &types.AttributeValueMemberS{Value: DeactivationBudgetExceeded},
			},
		})
		return err
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func updateKeyReturning(ctx context.Context, op string, input *dynamodb.UpdateItemInput) (*KeyContext, error) {
	var row KeyContext
	err := withRetry(ctx, op, func(ctx context.Context) error {
		out, err := DB.UpdateItem(ctx, input)
		if err != nil {
			return err
		}
		return errors.Wrap(attributevalue.UnmarshalMap(out.Attributes, &row), "unmarshal key row")
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func keyPK(apiKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"api_key": &types.AttributeValueMemberS{Value: apiKey},
	}
}

func isConditionalCheckFailed(err error) bool {
	var condFailed *types.ConditionalCheckFailedException
	return errors.As(err, &condFailed)
}
