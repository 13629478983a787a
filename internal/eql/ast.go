package eql

import "strings"

// BoolOp links an expression to its successor in a chain.
type BoolOp int

const (
	OpNone BoolOp = iota
	OpAnd
	OpOr
)

func (o BoolOp) String() string {
	switch o {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	default:
		return ""
	}
}

// ParseBoolOp maps a case-insensitive AND/OR keyword to its operator.
func ParseBoolOp(word string) (BoolOp, bool) {
	switch strings.ToUpper(word) {
	case "AND":
		return OpAnd, true
	case "OR":
		return OpOr, true
	}
	return OpNone, false
}

// CompareKind is the comparison operator of a Comparison. Not-equal is
// expressed as a negated CompareEqual.
type CompareKind int

const (
	CompareEqual CompareKind = iota
	CompareGreater
	CompareLower
	CompareGreaterEqual
	CompareLowerEqual
)

func (k CompareKind) String() string {
	switch k {
	case CompareEqual:
		return "=="
	case CompareGreater:
		return ">"
	case CompareLower:
		return "<"
	case CompareGreaterEqual:
		return ">="
	case CompareLowerEqual:
		return "<="
	}
	return "?"
}

// Expression is one boolean statement of a query.
type Expression interface {
	// NextOp is the operator joining this expression to the following one.
	NextOp() BoolOp
	// Fragment is the source text the expression was parsed from.
	Fragment() string
	// Operands returns every operand in textual order.
	Operands() []ContextVariable
}

// Link carries the chain operator and source fragment shared by all expressions.
type Link struct {
	Next   BoolOp
	Source string
}

func (l Link) NextOp() BoolOp   { return l.Next }
func (l Link) Fragment() string { return l.Source }

type Comparison struct {
	Link
	Left    ContextVariable
	Right   ContextVariable
	Kind    CompareKind
	Negated bool
}

func (c *Comparison) Operands() []ContextVariable {
	return []ContextVariable{c.Left, c.Right}
}

// InRange tests Field against optional bounds. A nil bound is absent.
type InRange struct {
	Link
	Field   ContextVariable
	Lower   *ContextVariable
	Upper   *ContextVariable
	Negated bool
}

func (r *InRange) Operands() []ContextVariable {
	out := []ContextVariable{r.Field}
	if r.Lower != nil {
		out = append(out, *r.Lower)
	}
	if r.Upper != nil {
		out = append(out, *r.Upper)
	}
	return out
}

// Typed tests whether a polymorphic relation points at TypeName or one of its
// subtypes. Field references the relation's identity, `<attr>.id`.
type Typed struct {
	Link
	Field    ContextVariable
	TypeName string
}

func (t *Typed) Operands() []ContextVariable {
	return []ContextVariable{t.Field}
}

// Chain is a flat, ordered sequence of expressions.
type Chain []Expression

// Groups splits the chain into AND-linked runs. The runs are OR-ed, so AND
// binds tighter than OR.
func (c Chain) Groups() [][]Expression {
	var (
		out [][]Expression
		cur []Expression
	)
	for _, e := range c {
		cur = append(cur, e)
		if e.NextOp() == OpOr {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func (c Chain) String() string {
	var sb strings.Builder
	for i, e := range c {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.Fragment())
		if op := e.NextOp(); op != OpNone {
			sb.WriteByte(' ')
			sb.WriteString(op.String())
		}
	}
	return sb.String()
}
