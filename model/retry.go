package model

import (
	"context"
	"math/rand"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
)

// withRetry runs one store operation under the persistence deadline with a
// bounded exponential backoff: base 50ms doubling up to 1s, full jitter, at
// most three retries, transient failures only. Semantic failures such as
// conditional-check rejections return immediately.
func withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(config.PersistenceTimeoutSeconds)*time.Second)
	defer cancel()

	backoff := config.PersistenceRetryBase
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= config.PersistenceMaxRetries || !isTransient(err) {
			return errors.Wrap(err, op)
		}

		// Full jitter: sleep a uniformly random slice of the current backoff.
		sleep := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-ctx.Done():
			return errors.Wrap(err, op)
		case <-time.After(sleep):
		}
		if backoff *= 2; backoff > config.PersistenceRetryMax {
			backoff = config.PersistenceRetryMax
		}
	}
}

// isTransient classifies store failures worth retrying: throttling, server
// faults and errors that never reached the service. Cancellation and
// conditional-check rejections are terminal.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return false
	}

	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return true
	}
	var limit *types.RequestLimitExceeded
	if errors.As(err, &limit) {
		return true
	}
	var ise *types.InternalServerError
	if errors.As(err, &ise) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailable", "ServiceUnavailableException":
			return true
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return true
		}
		var respErr *smithyhttp.ResponseError
		if errors.As(err, &respErr) {
			return respErr.HTTPStatusCode() >= 500
		}
		// A typed client fault that is not a throttle is semantic.
		return false
	}

	// The request never produced a service reply (connection reset, DNS, ...).
	return true
}
