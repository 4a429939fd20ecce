package bedrock

import (
	"context"
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// ClassifyError maps an upstream failure onto the client error taxonomy.
// Validation problems surface as invalid requests, credential problems as
// forbidden, throttles as rate limits; everything else is a gateway-side
// upstream failure, 504 when the upstream timed out and 502 otherwise.
func ClassifyError(err error) *relaymodel.ErrorWithStatusCode {
	if err == nil {
		return nil
	}

	var validation *types.ValidationException
	if errors.As(err, &validation) {
		return &relaymodel.ErrorWithStatusCode{
			Error: relaymodel.Error{
				Message:  "upstream rejected request: " + deref(validation.Message),
				Type:     relaymodel.ErrTypeInvalidRequest,
				RawError: err,
			},
			StatusCode: http.StatusBadRequest,
		}
	}

	var denied *types.AccessDeniedException
	if errors.As(err, &denied) {
		return &relaymodel.ErrorWithStatusCode{
			Error: relaymodel.Error{
				Message:  "upstream denied access to the requested model",
				Type:     relaymodel.ErrTypeForbidden,
				RawError: err,
			},
			StatusCode: http.StatusForbidden,
		}
	}

	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &relaymodel.ErrorWithStatusCode{
			Error: relaymodel.Error{
				Message:  "requested model not found upstream: " + deref(notFound.Message),
				Type:     relaymodel.ErrTypeInvalidRequest,
				RawError: err,
			},
			StatusCode: http.StatusBadRequest,
		}
	}

	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return &relaymodel.ErrorWithStatusCode{
			Error: relaymodel.Error{
				Message:  "upstream throttled the request, retry later",
				Type:     relaymodel.ErrTypeRateLimit,
				RawError: err,
			},
			StatusCode: http.StatusTooManyRequests,
		}
	}

	var modelTimeout *types.ModelTimeoutException
	if errors.As(err, &modelTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return relaymodel.NewUpstreamError(http.StatusGatewayTimeout, "upstream timed out", err)
	}

	// Model-side failures ride client-fault status codes upstream but are not
	// the caller's doing.
	var modelErr *types.ModelErrorException
	if errors.As(err, &modelErr) {
		return relaymodel.NewUpstreamError(http.StatusBadGateway,
			"upstream model error: "+deref(modelErr.Message), err)
	}
	var notReady *types.ModelNotReadyException
	if errors.As(err, &notReady) {
		return relaymodel.NewUpstreamError(http.StatusBadGateway,
			"upstream model is not ready, retry later", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		var respErr *smithyhttp.ResponseError
		if errors.As(err, &respErr) {
			switch code := respErr.HTTPStatusCode(); {
			case code == http.StatusTooManyRequests:
				return &relaymodel.ErrorWithStatusCode{
					Error: relaymodel.Error{
						Message:  "upstream throttled the request, retry later",
						Type:     relaymodel.ErrTypeRateLimit,
						RawError: err,
					},
					StatusCode: http.StatusTooManyRequests,
				}
			case code >= 400 && code < 500 && apiErr.ErrorFault() == smithy.FaultClient:
				return &relaymodel.ErrorWithStatusCode{
					Error: relaymodel.Error{
						Message:  "upstream rejected request: " + apiErr.ErrorMessage(),
						Type:     relaymodel.ErrTypeInvalidRequest,
						RawError: err,
					},
					StatusCode: http.StatusBadRequest,
				}
			}
		}
		// Service faults, model errors and not-ready states.
		return relaymodel.NewUpstreamError(http.StatusBadGateway,
			"upstream error: "+apiErr.ErrorCode(), err)
	}

	// The call never produced a service reply.
	return relaymodel.NewUpstreamError(http.StatusBadGateway, "upstream unreachable", err)
}

// isRetryable reports whether a unary upstream call is worth retrying:
// throttles and server-side faults, never validation or access problems.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return true
	}
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return true
	}
	var internal *types.InternalServerException
	if errors.As(err, &internal) {
		return true
	}
	var notReady *types.ModelNotReadyException
	if errors.As(err, &notReady) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorFault() == smithy.FaultServer {
			return true
		}
		var respErr *smithyhttp.ResponseError
		if errors.As(err, &respErr) {
			code := respErr.HTTPStatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		}
		return false
	}

	// Network-level failure before any service reply.
	return true
}
