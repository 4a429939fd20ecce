package model

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrMappingNotFound = errors.New("model mapping not found")

// ModelMapping is a persisted override from a client-dialect model id to the
// upstream id, consulted by the resolver between the environment overrides
// and the baked-in table.
type ModelMapping struct {
	AnthropicModelID string `dynamodbav:"anthropic_model_id" json:"anthropic_model_id"`
	BedrockModelID   string `dynamodbav:"bedrock_model_id" json:"bedrock_model_id"`
	UpdatedAt        string `dynamodbav:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// GetModelMapping loads one override row by client-dialect id.
func GetModelMapping(ctx context.Context, anthropicModelID string) (*ModelMapping, error) {
	var row *ModelMapping
	err := withRetry(ctx, "get model mapping", func(ctx context.Context) error {
		out, err := DB.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(TableModelMapping()),
			Key:       map[string]types.AttributeValue{"anthropic_model_id": stringAttr(anthropicModelID)},
		})
		if err != nil {
			return err
		}
		if len(out.Item) == 0 {
			row = nil
			return nil
		}
		var m ModelMapping
		if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
			return errors.Wrap(err, "unmarshal mapping row")
		}
		row = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrMappingNotFound
	}
	return row, nil
}

// ListModelMappings scans every override row, following pagination.
func ListModelMappings(ctx context.Context) ([]ModelMapping, error) {
	var rows []ModelMapping
	var startKey map[string]types.AttributeValue
	for {
		var out *dynamodb.ScanOutput
		err := withRetry(ctx, "list model mappings", func(ctx context.Context) error {
			var err error
			out, err = DB.Scan(ctx, &dynamodb.ScanInput{
				TableName:         aws.String(TableModelMapping()),
				ExclusiveStartKey: startKey,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		var page []ModelMapping
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, errors.Wrap(err, "unmarshal mapping rows")
		}
		rows = append(rows, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return rows, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
