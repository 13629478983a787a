// Package mediator converts query arguments into the wire values of the
// columns they are compared against.
package mediator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atlekbai/entityql/internal/schema"
)

var (
	ErrInvalidValue = errors.New("invalid value")
	ErrNoMediator   = errors.New("no mediator for value type")
	ErrNoSealer     = errors.New("encrypted attribute without a sealer")
)

// Mediator converts one argument into its wire representation. It is never
// called with nil.
type Mediator interface {
	Wire(v any) (any, error)
}

// Func adapts a function to Mediator.
type Func func(v any) (any, error)

func (f Func) Wire(v any) (any, error) { return f(v) }

// Sealer encrypts values of encrypted attributes. It must be deterministic
// for equality comparisons to match stored ciphertext.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
}

type Option func(*Registry)

// WithSealer enables encrypted attributes.
func WithSealer(s Sealer) Option {
	return func(r *Registry) { r.sealer = s }
}

// Registry maps value types to mediators.
type Registry struct {
	mu     sync.RWMutex
	byType map[schema.ValueType]Mediator
	sealer Sealer
}

// NewRegistry returns a registry with a mediator for every built-in value type.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	r.byType = map[schema.ValueType]Mediator{
		schema.ValueString:    Func(toString),
		schema.ValueInteger:   Func(toInteger),
		schema.ValueDecimal:   Func(toDecimal),
		schema.ValueBoolean:   Func(toBool),
		schema.ValueDate:      Func(toDate),
		schema.ValueTimestamp: Func(toTimestamp),
		schema.ValueUUID:      Func(toUUID),
		schema.ValueBinary:    Func(toBinary),
		schema.ValueJSON:      Func(toJSON),
		schema.ValueEncrypted: Func(r.seal),
	}
	return r
}

// Register installs or replaces the mediator of a value type.
func (r *Registry) Register(vt schema.ValueType, m Mediator) {
	r.mu.Lock()
	r.byType[vt] = m
	r.mu.Unlock()
}

func (r *Registry) Lookup(vt schema.ValueType) (Mediator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byType[vt]
	return m, ok
}

// Convert converts v for a column of value type vt. nil passes through.
func (r *Registry) Convert(vt schema.ValueType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := r.Lookup(vt)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoMediator, vt)
	}
	return m.Wire(v)
}

// ValueType returns the value type governing a's column. Identity columns,
// where a is nil, and relations take the schema's identity type.
func ValueType(s *schema.Schema, a *schema.Attribute) schema.ValueType {
	switch {
	case a == nil || a.IsRelation():
		return s.IdentityType
	case a.Kind == schema.AttrBinary:
		return schema.ValueBinary
	case a.Kind == schema.AttrJSON:
		return schema.ValueJSON
	}
	return a.ValueType
}

func (r *Registry) seal(v any) (any, error) {
	if r.sealer == nil {
		return nil, ErrNoSealer
	}
	var plain []byte
	switch v := v.(type) {
	case string:
		plain = []byte(v)
	case []byte:
		plain = v
	default:
		return nil, invalid(schema.ValueEncrypted, v)
	}
	return r.sealer.Seal(plain)
}

func invalid(vt schema.ValueType, v any) error {
	return fmt.Errorf("%w: cannot use %T as %s", ErrInvalidValue, v, vt)
}
