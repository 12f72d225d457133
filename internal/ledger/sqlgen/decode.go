package sqlgen

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/tallybook/tallybook/internal/catalog"
	"github.com/tallybook/tallybook/internal/ledger"
)

const dateLayout = "2006-01-02"

// convertValue coerces a JSON-shaped filter value into the Go type bound for
// the field's placeholder.
func convertValue(value any, fieldType catalog.FieldType) (any, error) {
	switch fieldType {
	case catalog.FieldDecimal:
		number, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %T", value)
		}
		return number, nil
	case catalog.FieldInteger:
		number, ok := toFloat(value)
		if !ok || number != math.Trunc(number) {
			return nil, fmt.Errorf("expected an integer, got %v", value)
		}
		return int64(number), nil
	case catalog.FieldDate:
		return toDate(value)
	case catalog.FieldBool:
		switch typed := value.(type) {
		case bool:
			return typed, nil
		case string:
			parsed, err := strconv.ParseBool(typed)
			if err != nil {
				return nil, fmt.Errorf("expected a boolean, got %q", typed)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("expected a boolean, got %T", value)
	default:
		switch typed := value.(type) {
		case string:
			return typed, nil
		case float64:
			return strconv.FormatFloat(typed, 'f', -1, 64), nil
		}
		return nil, fmt.Errorf("expected a string, got %T", value)
	}
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

// toDate accepts YYYY-MM-DD or an RFC 3339 timestamp and keeps the calendar
// date only.
func toDate(value any) (string, error) {
	switch typed := value.(type) {
	case time.Time:
		return typed.Format(dateLayout), nil
	case string:
		trimmed := strings.TrimSpace(typed)
		if parsed, err := time.Parse(dateLayout, trimmed); err == nil {
			return parsed.Format(dateLayout), nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
			return parsed.Format(dateLayout), nil
		}
		return "", fmt.Errorf("expected a date, got %q", typed)
	}
	return "", fmt.Errorf("expected a date, got %T", value)
}

// Decode maps one scanned row onto a Record using the query's column plan.
func Decode(columns []Column, values []any) (ledger.Record, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("decode row: %d columns, %d values", len(columns), len(values))
	}
	record := ledger.Record{}
	for i, column := range columns {
		value, err := decodeValue(values[i], column.Type)
		if err != nil {
			return nil, fmt.Errorf("decode column %q: %w", column.Alias, err)
		}
		switch {
		case column.Aggregate == "":
			record[column.Field] = value
		case column.Scalar:
			record[column.Aggregate] = value
		default:
			nested, _ := record[column.Aggregate].(map[string]any)
			if nested == nil {
				nested = map[string]any{}
				record[column.Aggregate] = nested
			}
			nested[column.Field] = value
		}
	}
	return record, nil
}

type float64er interface {
	Float64() float64
}

func decodeValue(value any, fieldType catalog.FieldType) (any, error) {
	if raw, ok := value.([]byte); ok {
		value = string(raw)
	}
	if value == nil {
		return nil, nil
	}

	switch fieldType {
	case catalog.FieldDecimal:
		return decodeFloat(value)
	case catalog.FieldInteger:
		switch typed := value.(type) {
		case int64:
			return typed, nil
		case *big.Int:
			return typed.Int64(), nil
		}
		number, err := decodeFloat(value)
		if err != nil {
			return nil, err
		}
		return int64(number), nil
	case catalog.FieldDate:
		switch typed := value.(type) {
		case time.Time:
			return typed.UTC().Format(dateLayout), nil
		case string:
			return toDate(typed)
		}
		return nil, fmt.Errorf("unexpected date value %T", value)
	case catalog.FieldBool:
		if typed, ok := value.(bool); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("unexpected boolean value %T", value)
	default:
		switch typed := value.(type) {
		case string:
			return typed, nil
		case time.Time:
			return typed.UTC().Format(time.RFC3339), nil
		}
		return fmt.Sprint(value), nil
	}
}

func decodeFloat(value any) (float64, error) {
	switch typed := value.(type) {
	case *big.Int:
		number, _ := new(big.Float).SetInt(typed).Float64()
		return number, nil
	case float64er:
		return typed.Float64(), nil
	}
	number, ok := toFloat(value)
	if !ok {
		return 0, fmt.Errorf("unexpected numeric value %T", value)
	}
	return number, nil
}
