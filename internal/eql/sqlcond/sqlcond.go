// Package sqlcond maps a parsed expression chain onto a squirrel condition
// tree over the columns of a mapping binding.
package sqlcond

import (
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/entityql/internal/binding"
	"github.com/atlekbai/entityql/internal/eql"
	"github.com/atlekbai/entityql/internal/mediator"
)

// ErrInvariant reports an expression the parser should never have produced.
var ErrInvariant = errors.New("expression invariant violated")

type Option func(*Mapper)

// WithPrefix maps paths relative to prefix, for bindings built under it.
func WithPrefix(prefix string) Option {
	return func(m *Mapper) { m.prefix = prefix }
}

// WithMediators sets the registry converting arguments to wire values.
func WithMediators(r *mediator.Registry) Option {
	return func(m *Mapper) { m.mediators = r }
}

// Mapper is safe for concurrent use once built.
type Mapper struct {
	prefix    string
	mediators *mediator.Registry
}

func New(opts ...Option) *Mapper {
	m := &Mapper{}
	for _, opt := range opts {
		opt(m)
	}
	if m.mediators == nil {
		m.mediators = mediator.NewRegistry()
	}
	return m
}

// Map translates the chain. AND-linked runs become groups that are OR-ed
// together. An empty chain maps to nil.
func (m *Mapper) Map(chain eql.Chain, root *binding.MappingBinding) (sq.Sqlizer, error) {
	var groups []sq.Sqlizer
	for _, group := range chain.Groups() {
		and := make([]sq.Sqlizer, 0, len(group))
		for _, e := range group {
			c, err := m.Expression(e, root)
			if err != nil {
				return nil, err
			}
			and = append(and, c)
		}
		groups = append(groups, andOf(and))
	}
	if len(groups) == 0 {
		return nil, nil
	}
	return orOf(groups), nil
}

// Expression maps a single expression.
func (m *Mapper) Expression(e eql.Expression, root *binding.MappingBinding) (sq.Sqlizer, error) {
	switch e := e.(type) {
	case *eql.Comparison:
		return m.comparison(e, root)
	case *eql.InRange:
		return m.inRange(e, root)
	case *eql.Typed:
		return m.typed(e, root)
	}
	return nil, fmt.Errorf("unknown expression type %T", e)
}

func andOf(parts []sq.Sqlizer) sq.Sqlizer {
	if len(parts) == 1 {
		return parts[0]
	}
	return sq.And(parts)
}

func orOf(parts []sq.Sqlizer) sq.Sqlizer {
	if len(parts) == 1 {
		return parts[0]
	}
	return sq.Or(parts)
}

// resolve returns every binding the attribute operand v names.
func (m *Mapper) resolve(v eql.ContextVariable, root *binding.MappingBinding) ([]binding.AliasBinding, error) {
	if !v.IsAttribute() {
		return nil, fmt.Errorf("%w: operand %s is not an attribute", ErrInvariant, v)
	}
	path, ok := eql.StripPrefix(v.Path, m.prefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q is outside %q", binding.ErrUnresolved, v.Path, m.prefix)
	}
	out := root.Resolve(path)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", binding.ErrUnresolved, v.Path)
	}
	return out, nil
}

// each emits one condition per binding, OR-ed when there are several.
func each(bs []binding.AliasBinding, fn func(binding.AliasBinding) (sq.Sqlizer, error)) (sq.Sqlizer, error) {
	or := make([]sq.Sqlizer, 0, len(bs))
	for _, b := range bs {
		c, err := fn(b)
		if err != nil {
			return nil, err
		}
		or = append(or, c)
	}
	return orOf(or), nil
}

// wire converts an argument for the column of b.
func (m *Mapper) wire(root *binding.MappingBinding, b binding.AliasBinding, v eql.ContextVariable) (any, error) {
	vt := mediator.ValueType(root.Schema, b.Attribute)
	val, err := m.mediators.Convert(vt, v.Value)
	if err != nil {
		return nil, fmt.Errorf("argument %s for %s: %w", v, b.Name(), err)
	}
	return val, nil
}
