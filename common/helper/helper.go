package helper

import (
	"fmt"

	"github.com/skybridge-ai/bedrock-gateway/common/random"
)

// RequestIdKey is both the gin context key and the response header carrying
// the per-request identifier. The same value is mirrored into x-trace-id.
const RequestIdKey = "X-Request-Id"

// GenRequestID produces a sortable request identifier: a timestamp prefix
// followed by random digits, so ids from one node sort roughly by arrival.
func GenRequestID() string {
	return GetTimeString() + random.GetRandomNumberString(8)
}

// MessageWithRequestId appends the request id to a client-facing error
// message so users can quote it in support requests.
func MessageWithRequestId(message string, id string) string {
	if id == "" {
		return message
	}
	return fmt.Sprintf("%s (request id: %s)", message, id)
}

// AssignOrDefault returns value when non-empty, otherwise defaultValue.
func AssignOrDefault(value string, defaultValue string) string {
	if len(value) != 0 {
		return value
	}
	return defaultValue
}
