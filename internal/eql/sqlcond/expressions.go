package sqlcond

import (
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/entityql/internal/binding"
	"github.com/atlekbai/entityql/internal/eql"
	"github.com/atlekbai/entityql/internal/schema"
)

// ErrTypeMismatch is returned when a type test can hold for none of the
// tables reachable through its relation.
var ErrTypeMismatch = errors.New("type test matches no table")

// ErrNullOrdering is returned for a null argument in an ordering comparison,
// which handlers registered with null support let through.
var ErrNullOrdering = errors.New("null argument in ordering comparison")

func (m *Mapper) comparison(c *eql.Comparison, root *binding.MappingBinding) (sq.Sqlizer, error) {
	field, other, kind := c.Left, c.Right, c.Kind
	if field.IsArgument() {
		if other.IsArgument() {
			return nil, fmt.Errorf("%w: %q compares two arguments", ErrInvariant, c.Fragment())
		}
		field, other, kind = other, field, mirror(kind)
	}
	op := sqlOp(kind, c.Negated)

	bs, err := m.resolve(field, root)
	if err != nil {
		return nil, err
	}

	if other.IsAttribute() {
		rs, err := m.resolve(other, root)
		if err != nil {
			return nil, err
		}
		if len(rs) != 1 {
			return nil, fmt.Errorf("%w: %q maps to %d columns, a compared attribute needs exactly one",
				schema.ErrAmbiguousAttribute, other.Path, len(rs))
		}
		rhs := rs[0].Qualified()
		return each(bs, func(b binding.AliasBinding) (sq.Sqlizer, error) {
			return sq.Expr(fmt.Sprintf("%s %s %s", b.Qualified(), op, rhs)), nil
		})
	}

	if other.Value == nil {
		if kind != eql.CompareEqual {
			return nil, fmt.Errorf("%w: %s in %q", ErrNullOrdering, other, c.Fragment())
		}
		return each(bs, func(b binding.AliasBinding) (sq.Sqlizer, error) {
			if c.Negated {
				return sq.NotEq{b.Qualified(): nil}, nil
			}
			return sq.Eq{b.Qualified(): nil}, nil
		})
	}

	return each(bs, func(b binding.AliasBinding) (sq.Sqlizer, error) {
		val, err := m.wire(root, b, other)
		if err != nil {
			return nil, err
		}
		return comparisonExpr(b.Qualified(), kind, c.Negated, val), nil
	})
}

func comparisonExpr(col string, kind eql.CompareKind, negated bool, val any) sq.Sqlizer {
	if kind == eql.CompareEqual {
		if negated {
			return sq.NotEq{col: val}
		}
		return sq.Eq{col: val}
	}
	return sq.Expr(fmt.Sprintf("%s %s ?", col, sqlOp(kind, negated)), val)
}

// sqlOp returns the SQL operator of kind, inverted when negated.
func sqlOp(kind eql.CompareKind, negated bool) string {
	switch kind {
	case eql.CompareGreater:
		return pick(negated, ">", "<=")
	case eql.CompareLower:
		return pick(negated, "<", ">=")
	case eql.CompareGreaterEqual:
		return pick(negated, ">=", "<")
	case eql.CompareLowerEqual:
		return pick(negated, "<=", ">")
	}
	return pick(negated, "=", "<>")
}

func pick(negated bool, op, inverse string) string {
	if negated {
		return inverse
	}
	return op
}

// mirror returns the operator that keeps the meaning when operands swap sides.
func mirror(kind eql.CompareKind) eql.CompareKind {
	switch kind {
	case eql.CompareGreater:
		return eql.CompareLower
	case eql.CompareLower:
		return eql.CompareGreater
	case eql.CompareGreaterEqual:
		return eql.CompareLowerEqual
	case eql.CompareLowerEqual:
		return eql.CompareGreaterEqual
	}
	return kind
}

func (m *Mapper) inRange(r *eql.InRange, root *binding.MappingBinding) (sq.Sqlizer, error) {
	if r.Lower == nil && r.Upper == nil {
		return nil, fmt.Errorf("%w: %q has no bounds", ErrInvariant, r.Fragment())
	}
	bs, err := m.resolve(r.Field, root)
	if err != nil {
		return nil, err
	}
	return each(bs, func(b binding.AliasBinding) (sq.Sqlizer, error) {
		var (
			col    = b.Qualified()
			lo, hi any
			err    error
		)
		if r.Lower != nil {
			if lo, err = m.wire(root, b, *r.Lower); err != nil {
				return nil, err
			}
		}
		if r.Upper != nil {
			if hi, err = m.wire(root, b, *r.Upper); err != nil {
				return nil, err
			}
		}

		switch {
		case r.Lower != nil && r.Upper != nil && r.Negated:
			return sq.Or{
				sq.Expr(col+" < ?", lo),
				sq.Expr(col+" > ?", hi),
			}, nil
		case r.Lower != nil && r.Upper != nil:
			return sq.Expr(col+" BETWEEN ? AND ?", lo, hi), nil
		case r.Lower != nil:
			return sq.Expr(fmt.Sprintf("%s %s ?", col, pick(r.Negated, ">=", "<")), lo), nil
		default:
			return sq.Expr(fmt.Sprintf("%s %s ?", col, pick(r.Negated, "<=", ">")), hi), nil
		}
	})
}

// typed keeps only the identity columns of tables whose type is the named
// type or one of its descendants; the row is of that type when one of them
// is present.
func (m *Mapper) typed(t *eql.Typed, root *binding.MappingBinding) (sq.Sqlizer, error) {
	s := root.Schema
	want := s.Type(t.TypeName)
	if want == nil {
		return nil, fmt.Errorf("%w: type %q", schema.ErrUnknownHolder, t.TypeName)
	}
	bs, err := m.resolve(t.Field, root)
	if err != nil {
		return nil, err
	}

	var matched []binding.AliasBinding
	for _, b := range bs {
		if rt := rowType(s, b); rt != nil && s.IsA(rt, want) {
			matched = append(matched, b)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %q cannot hold %s", ErrTypeMismatch, t.Field.Path, want.Name)
	}
	return each(matched, func(b binding.AliasBinding) (sq.Sqlizer, error) {
		return sq.NotEq{b.Qualified(): nil}, nil
	})
}

// rowType is the type of the rows an identity binding points at. For an
// unjoined relation key it is the single table shape of the target.
func rowType(s *schema.Schema, b binding.AliasBinding) *schema.Type {
	if b.Attribute == nil {
		return b.Type
	}
	if !b.Attribute.IsRelation() {
		return nil
	}
	base, variants := s.Tables(*b.Attribute.Target)
	switch {
	case len(base) > 0:
		return base[len(base)-1]
	case len(variants) == 1:
		return variants[0]
	}
	return nil
}
