package model

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/logger"
)

// DynamoAPI is the subset of the DynamoDB client the store uses. Tests swap
// in fakes; production wires the real client in InitDB.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DB is the process-wide store handle, set once by InitDB (or by tests).
var DB DynamoAPI

// Table name accessors. The base names are normative; the prefix namespaces
// deployments sharing one account.
func TableAPIKeys() string      { return config.DynamoDBTablePrefix + "api-keys" }
func TableUsage() string        { return config.DynamoDBTablePrefix + "usage" }
func TableUsageStats() string   { return config.DynamoDBTablePrefix + "usage-stats" }
func TableModelMapping() string { return config.DynamoDBTablePrefix + "model-mapping" }
func TableModelPricing() string { return config.DynamoDBTablePrefix + "model-pricing" }

// NewAWSConfig builds the shared AWS SDK config: region from the environment,
// static credentials when both halves are configured, default chain otherwise.
func NewAWSConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.AWSRegion),
	}
	if config.AWSAccessKeyID != "" && config.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AWSAccessKeyID, config.AWSSecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "load aws config")
	}
	return cfg, nil
}

// InitDB wires the DynamoDB client. The SDK's own retryer is disabled; the
// store applies its own bounded retry policy per operation (see retry.go).
func InitDB() {
	cfg, err := NewAWSConfig(context.Background())
	if err != nil {
		logger.Logger.Fatal("failed to initialize dynamodb client", zap.Error(err))
		return
	}

	DB = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if config.DynamoDBEndpointURL != "" {
			o.BaseEndpoint = aws.String(config.DynamoDBEndpointURL)
		}
		o.Retryer = aws.NopRetryer{}
	})

	probeTables()
}

// probeTables checks that the key table is reachable. A missing table is a
// deployment gap worth a loud warning, not a fatal: accounting writes are
// fire-and-forget and auth failures surface per request.
func probeTables() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.PersistenceTimeoutSeconds)*time.Second)
	defer cancel()

	_, err := DB.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(TableAPIKeys())})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			logger.Logger.Warn("key table does not exist; run `keyadmin ensure-tables` to create the schema",
				zap.String("table", TableAPIKeys()))
			return
		}
		logger.Logger.Error("dynamodb is not reachable; key lookups and usage accounting will fail",
			zap.String("table", TableAPIKeys()), zap.Error(err))
		return
	}
	logger.Logger.Info("dynamodb ready", zap.String("table_prefix", config.DynamoDBTablePrefix))
}

// EnsureTables creates the persisted layout with on-demand billing. Existing
// tables are left untouched.
func EnsureTables(ctx context.Context, db DynamoAPI) error {
	specs := []struct {
		name string
		keys []types.KeySchemaElement
		defs []types.AttributeDefinition
	}{
		{
			name: TableAPIKeys(),
			keys: []types.KeySchemaElement{{AttributeName: aws.String("api_key"), KeyType: types.KeyTypeHash}},
			defs: []types.AttributeDefinition{{AttributeName: aws.String("api_key"), AttributeType: types.ScalarAttributeTypeS}},
		},
		{
			name: TableUsage(),
			keys: []types.KeySchemaElement{
				{AttributeName: aws.String("api_key"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("timestamp"), KeyType: types.KeyTypeRange},
			},
			defs: []types.AttributeDefinition{
				{AttributeName: aws.String("api_key"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("timestamp"), AttributeType: types.ScalarAttributeTypeS},
			},
		},
		{
			name: TableUsageStats(),
			keys: []types.KeySchemaElement{{AttributeName: aws.String("api_key"), KeyType: types.KeyTypeHash}},
			defs: []types.AttributeDefinition{{AttributeName: aws.String("api_key"), AttributeType: types.ScalarAttributeTypeS}},
		},
		{
			name: TableModelMapping(),
			keys: []types.KeySchemaElement{{AttributeName: aws.String("anthropic_model_id"), KeyType: types.KeyTypeHash}},
			defs: []types.AttributeDefinition{{AttributeName: aws.String("anthropic_model_id"), AttributeType: types.ScalarAttributeTypeS}},
		},
		{
			name: TableModelPricing(),
			keys: []types.KeySchemaElement{{AttributeName: aws.String("model_id"), KeyType: types.KeyTypeHash}},
			defs: []types.AttributeDefinition{{AttributeName: aws.String("model_id"), AttributeType: types.ScalarAttributeTypeS}},
		},
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		g.Go(func() error {
			_, err := db.CreateTable(ctx, &dynamodb.CreateTableInput{
				TableName:            aws.String(spec.name),
				KeySchema:            spec.keys,
				AttributeDefinitions: spec.defs,
				BillingMode:          types.BillingModePayPerRequest,
			})
			if err != nil {
				var exists *types.ResourceInUseException
				if errors.As(err, &exists) {
					return nil
				}
				return errors.Wrapf(err, "create table %s", spec.name)
			}
			logger.Logger.Info("created table", zap.String("table", spec.name))
			return nil
		})
	}
	return g.Wait()
}
