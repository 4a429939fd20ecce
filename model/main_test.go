package model

import (
	"context"
	"sync"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureTablesCreatesTheWholeLayout(t *testing.T) {
	var mu sync.Mutex
	var created []string
	db := &fakeDB{
		createTable: func(_ context.Context, in *dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error) {
			mu.Lock()
			defer mu.Unlock()
			created = append(created, aws.ToString(in.TableName))
			assert.Equal(t, types.BillingModePayPerRequest, in.BillingMode)
			return &dynamodb.CreateTableOutput{}, nil
		},
	}

	require.NoError(t, EnsureTables(context.Background(), db))
	assert.ElementsMatch(t, []string{
		TableAPIKeys(),
		TableUsage(),
		TableUsageStats(),
		TableModelMapping(),
		TableModelPricing(),
	}, created)
}

func TestEnsureTablesToleratesExistingTables(t *testing.T) {
	db := &fakeDB{
		createTable: func(_ context.Context, _ *dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error) {
			return nil, &types.ResourceInUseException{}
		},
	}
	assert.NoError(t, EnsureTables(context.Background(), db))
}

func TestEnsureTablesPropagatesFailures(t *testing.T) {
	db := &fakeDB{
		createTable: func(_ context.Context, in *dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error) {
			if aws.ToString(in.TableName) == TableUsage() {
				return nil, errors.New("access denied")
			}
			return &dynamodb.CreateTableOutput{}, nil
		},
	}
	err := EnsureTables(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Contains(t, err.Error(), TableUsage())
}
