package model

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrPricingNotFound = errors.New("model pricing not found")

// PricingStatusActive marks rows that should be billed and listed; anything
// else is ignored by the cost calculator and hidden from /v1/models.
const PricingStatusActive = "active"

// ModelPricing is one model-pricing row: USD per million tokens, split by
// token category. ModelID is the upstream identifier.
type ModelPricing struct {
	ModelID              string  `dynamodbav:"model_id" json:"model_id"`
	Provider             string  `dynamodbav:"provider,omitempty" json:"provider,omitempty"`
	DisplayName          string  `dynamodbav:"display_name,omitempty" json:"display_name,omitempty"`
	InputPricePer1M      float64 `dynamodbav:"input_price_per_1m" json:"input_price_per_1m"`
	OutputPricePer1M     float64 `dynamodbav:"output_price_per_1m" json:"output_price_per_1m"`
	CacheReadPricePer1M  float64 `dynamodbav:"cache_read_price_per_1m" json:"cache_read_price_per_1m"`
	CacheWritePricePer1M float64 `dynamodbav:"cache_write_price_per_1m" json:"cache_write_price_per_1m"`
	Status               string  `dynamodbav:"status,omitempty" json:"status,omitempty"`
}

// GetModelPricing loads one pricing row by upstream model id.
func GetModelPricing(ctx context.Context, modelID string) (*ModelPricing, error) {
	var row *ModelPricing
	err := withRetry(ctx, "get model pricing", func(ctx context.Context) error {
		out, err := DB.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(TableModelPricing()),
			Key:       map[string]types.AttributeValue{"model_id": stringAttr(modelID)},
		})
		if err != nil {
			return err
		}
		if len(out.Item) == 0 {
			row = nil
			return nil
		}
		var p ModelPricing
		if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
			return errors.Wrap(err, "unmarshal pricing row")
		}
		row = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrPricingNotFound
	}
	return row, nil
}

// ListModelPricing scans every pricing row, following pagination.
func ListModelPricing(ctx context.Context) ([]ModelPricing, error) {
	var rows []ModelPricing
	var startKey map[string]types.AttributeValue
	for {
		var out *dynamodb.ScanOutput
		err := withRetry(ctx, "list model pricing", func(ctx context.Context) error {
			var err error
			out, err = DB.Scan(ctx, &dynamodb.ScanInput{
				TableName:         aws.String(TableModelPricing()),
				ExclusiveStartKey: startKey,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		var page []ModelPricing
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, errors.Wrap(err, "unmarshal pricing rows")
		}
		rows = append(rows, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return rows, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
