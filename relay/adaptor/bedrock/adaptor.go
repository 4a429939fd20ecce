package bedrock

import (
	"context"
	"math/rand"
	"time"

	"github.com/Laisky/zap"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/logger"
	"github.com/skybridge-ai/bedrock-gateway/model"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// API is the subset of the Bedrock runtime client the relay uses. Tests swap
// in fakes; production wires the real client in Init.
type API interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Client is the process-wide upstream handle, set once by Init (or by tests).
var Client API

// Unary retry policy: throttles and server faults only, full jitter. Streams
// are never retried once started.
const (
	retryBase  = 200 * time.Millisecond
	retryMax   = 2 * time.Second
	maxRetries = 2
)

// Init wires the Bedrock runtime client. The SDK's own retryer is disabled;
// Converse applies its own policy so retries stay within the request budget.
func Init() error {
	cfg, err := model.NewAWSConfig(context.Background())
	if err != nil {
		return err
	}
	Client = bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		if config.BedrockEndpointURL != "" {
			o.BaseEndpoint = aws.String(config.BedrockEndpointURL)
		}
		o.Retryer = aws.NopRetryer{}
	})
	logger.Logger.Info("bedrock runtime client ready", zap.String("region", config.AWSRegion))
	return nil
}

// Converse performs the unary upstream exchange under the upstream timeout,
// retrying throttles and server faults with exponential backoff.
func Converse(ctx context.Context, in *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, *relaymodel.ErrorWithStatusCode) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(config.UpstreamTimeoutSeconds)*time.Second)
	defer cancel()

	backoff := retryBase
	var lastErr error
	for attempt := 0; ; attempt++ {
		out, err := Client.Converse(ctx, in)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt >= maxRetries || !isRetryable(err) {
			break
		}
		logger.Logger.Warn("retrying upstream call",
			zap.Int("attempt", attempt+1), zap.Error(err))

		sleep := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-ctx.Done():
			return nil, ClassifyError(lastErr)
		case <-time.After(sleep):
		}
		if backoff *= 2; backoff > retryMax {
			backoff = retryMax
		}
	}
	return nil, ClassifyError(lastErr)
}

// ConverseStream opens the upstream event stream. The caller owns the stream
// lifetime (including Close) and the streaming deadline on ctx; failures once
// the stream is open travel in-band, never as a retry.
func ConverseStream(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (*bedrockruntime.ConverseStreamOutput, *relaymodel.ErrorWithStatusCode) {
	out, err := Client.ConverseStream(ctx, in)
	if err != nil {
		return nil, ClassifyError(err)
	}
	return out, nil
}
