package model

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute value shorthands for hand-built update expressions; rows going
// through attributevalue.MarshalMap do not need these.

func stringAttr(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func intAttr(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

// formatFloat renders a DynamoDB numeric literal. The shortest round-trip
// form keeps stored budget counters exact.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
