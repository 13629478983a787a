package mediator_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/entityql/internal/mediator"
	"github.com/atlekbai/entityql/internal/schema"
	"github.com/atlekbai/entityql/internal/schema/schematest"
)

type reverseSealer struct{}

func (reverseSealer) Seal(p []byte) ([]byte, error) {
	out := make([]byte, len(p))
	for i, b := range p {
		out[len(p)-1-i] = b
	}
	return out, nil
}

func TestConvert(t *testing.T) {
	id := uuid.MustParse("3f2b8c1e-6d7a-4e52-9b0c-1a2b3c4d5e6f")
	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		vt   schema.ValueType
		in   any
		want any
	}{
		{"string", schema.ValueString, "abc", "abc"},
		{"string from bytes", schema.ValueString, []byte("abc"), "abc"},
		{"string from stringer", schema.ValueString, id, id.String()},
		{"integer from int", schema.ValueInteger, 42, int64(42)},
		{"integer from json float", schema.ValueInteger, float64(42), int64(42)},
		{"integer from string", schema.ValueInteger, "-7", int64(-7)},
		{"integer from json number", schema.ValueInteger, json.Number("9"), int64(9)},
		{"decimal from string", schema.ValueDecimal, "1.25", decimal.RequireFromString("1.25")},
		{"decimal from int", schema.ValueDecimal, 3, decimal.NewFromInt(3)},
		{"boolean", schema.ValueBoolean, true, true},
		{"boolean from string", schema.ValueBoolean, "false", false},
		{"timestamp", schema.ValueTimestamp, ts, ts},
		{"timestamp from string", schema.ValueTimestamp, "2025-06-01T12:30:00Z", ts},
		{"date truncates", schema.ValueDate, ts, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"date from string", schema.ValueDate, "2025-06-01", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"uuid from string", schema.ValueUUID, id.String(), id},
		{"uuid", schema.ValueUUID, id, id},
		{"binary from base64", schema.ValueBinary, "aGk=", []byte("hi")},
		{"binary", schema.ValueBinary, []byte{1, 2}, []byte{1, 2}},
		{"json object", schema.ValueJSON, map[string]any{"a": 1}, `{"a":1}`},
		{"json raw", schema.ValueJSON, json.RawMessage(`[1, 2]`), `[1, 2]`},
		{"json string", schema.ValueJSON, "x", `"x"`},
	}

	r := mediator.NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Convert(tt.vt, tt.in)
			require.NoError(t, err)
			if d, ok := tt.want.(decimal.Decimal); ok {
				assert.True(t, d.Equal(got.(decimal.Decimal)), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertRejects(t *testing.T) {
	tests := []struct {
		name string
		vt   schema.ValueType
		in   any
	}{
		{"string from int", schema.ValueString, 5},
		{"fractional integer", schema.ValueInteger, 1.5},
		{"integer from text", schema.ValueInteger, "many"},
		{"decimal from text", schema.ValueDecimal, "1,5"},
		{"boolean from text", schema.ValueBoolean, "maybe"},
		{"timestamp from text", schema.ValueTimestamp, "yesterday"},
		{"date from int", schema.ValueDate, 20250601},
		{"uuid from text", schema.ValueUUID, "not-a-uuid"},
		{"binary not base64", schema.ValueBinary, "***"},
		{"malformed json", schema.ValueJSON, []byte("{")},
	}

	r := mediator.NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Convert(tt.vt, tt.in)
			assert.ErrorIs(t, err, mediator.ErrInvalidValue)
		})
	}
}

func TestNilPassesThrough(t *testing.T) {
	r := mediator.NewRegistry()
	for _, vt := range []schema.ValueType{schema.ValueString, schema.ValueInteger, schema.ValueEncrypted, "CUSTOM"} {
		got, err := r.Convert(vt, nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestEncrypted(t *testing.T) {
	_, err := mediator.NewRegistry().Convert(schema.ValueEncrypted, "abc")
	assert.ErrorIs(t, err, mediator.ErrNoSealer)

	r := mediator.NewRegistry(mediator.WithSealer(reverseSealer{}))
	got, err := r.Convert(schema.ValueEncrypted, "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("cba"), got)

	_, err = r.Convert(schema.ValueEncrypted, 12)
	assert.ErrorIs(t, err, mediator.ErrInvalidValue)
}

func TestRegisterOverrides(t *testing.T) {
	r := mediator.NewRegistry()
	_, err := r.Convert("MONEY", "1")
	assert.ErrorIs(t, err, mediator.ErrNoMediator)

	errCents := errors.New("cents only")
	r.Register("MONEY", mediator.Func(func(v any) (any, error) {
		if s, ok := v.(string); ok {
			return s + "00", nil
		}
		return nil, errCents
	}))
	got, err := r.Convert("MONEY", "1")
	require.NoError(t, err)
	assert.Equal(t, "100", got)

	_, err = r.Convert("MONEY", 1)
	assert.ErrorIs(t, err, errCents)
}

func TestValueType(t *testing.T) {
	s := schematest.Shop(t)
	order := s.Type("Order")
	attr := func(name string) *schema.Attribute {
		a, ok := s.FindAttribute(order.Ref(), name)
		require.True(t, ok, name)
		return a
	}

	assert.Equal(t, schema.ValueInteger, mediator.ValueType(s, nil))
	assert.Equal(t, schema.ValueInteger, mediator.ValueType(s, attr("customer")))
	assert.Equal(t, schema.ValueBinary, mediator.ValueType(s, attr("attachment")))
	assert.Equal(t, schema.ValueJSON, mediator.ValueType(s, attr("meta")))
	assert.Equal(t, schema.ValueDecimal, mediator.ValueType(s, attr("total")))
	assert.Equal(t, schema.ValueTimestamp, mediator.ValueType(s, attr("createdAt")))
}
