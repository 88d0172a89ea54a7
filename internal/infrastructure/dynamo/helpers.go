package dynamo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds the primary key for the single-attribute tables (accounts,
// listings, owners).
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// compositeKey builds the PK+SK key used by the reviews and checkpoints
// tables.
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

// buildUpdateExpr converts field->value updates into a SET expression with
// placeholder names, so reserved words like "value" are safe as attribute
// names. Fields are emitted in sorted order to keep the expression stable
// for a given update.
func buildUpdateExpr(updates map[string]interface{}) (string, map[string]string, map[string]types.AttributeValue, error) {
	if len(updates) == 0 {
		return "", nil, nil, fmt.Errorf("no fields to update")
	}
	fields := make([]string, 0, len(updates))
	for k := range updates {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	var expr strings.Builder
	expr.WriteString("SET ")
	for i, field := range fields {
		av, err := attributevalue.Marshal(updates[field])
		if err != nil {
			return "", nil, nil, fmt.Errorf("marshal field %s: %w", field, err)
		}
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		names[nameKey] = field
		values[valueKey] = av
		if i > 0 {
			expr.WriteString(", ")
		}
		fmt.Fprintf(&expr, "%s = %s", nameKey, valueKey)
	}
	return expr.String(), names, values, nil
}
