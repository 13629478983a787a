package mediator

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlekbai/entityql/internal/schema"
)

const dateLayout = "2006-01-02"

func toString(v any) (any, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return nil, invalid(schema.ValueString, v)
}

func toInteger(v any) (any, error) {
	switch v := v.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, invalid(schema.ValueInteger, v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, invalid(schema.ValueInteger, v)
		}
		return int64(v), nil
	case float64:
		// JSON numbers decode to float64.
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return nil, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v)
		}
		return n, nil
	}
	return nil, invalid(schema.ValueInteger, v)
}

func toDecimal(v any) (any, error) {
	switch v := v.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a decimal", ErrInvalidValue, v)
		}
		return d, nil
	case json.Number:
		return decimal.NewFromString(v.String())
	}
	n, err := toInteger(v)
	if err != nil {
		return nil, invalid(schema.ValueDecimal, v)
	}
	return decimal.NewFromInt(n.(int64)), nil
}

func toBool(v any) (any, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, v)
		}
		return b, nil
	}
	return nil, invalid(schema.ValueBoolean, v)
}

func toTimestamp(v any) (any, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, nil
		}
		if t, err := time.Parse(dateLayout, v); err == nil {
			return t, nil
		}
		return nil, fmt.Errorf("%w: %q is not an RFC 3339 timestamp", ErrInvalidValue, v)
	}
	return nil, invalid(schema.ValueTimestamp, v)
}

func toDate(v any) (any, error) {
	t, err := toTimestamp(v)
	if err != nil {
		return nil, invalid(schema.ValueDate, v)
	}
	ts := t.(time.Time)
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
}

func toUUID(v any) (any, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a uuid", ErrInvalidValue, v)
		}
		return id, nil
	}
	return nil, invalid(schema.ValueUUID, v)
}

func toBinary(v any) (any, error) {
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: binary arguments are base64: %v", ErrInvalidValue, err)
		}
		return b, nil
	}
	return nil, invalid(schema.ValueBinary, v)
}

func toJSON(v any) (any, error) {
	switch v := v.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidValue)
		}
		return string(v), nil
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidValue)
		}
		return string(v), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return string(b), nil
}
