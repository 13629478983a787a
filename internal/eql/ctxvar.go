// Package eql defines the expression model of the entity query language:
// operands, boolean statements and the flat chain linking them.
package eql

import "fmt"

// VarKind distinguishes the two kinds of operand.
type VarKind int

const (
	VarArgument VarKind = iota
	VarAttribute
)

// ContextVariable is a parsed operand: either a positional argument or a
// dotted attribute path relative to the root entity. It is a value type and
// is never mutated after construction.
type ContextVariable struct {
	Kind     VarKind
	Position int    // argument ordinal, VarArgument only
	Value    any    // argument value, VarArgument only
	Path     string // dotted path, VarAttribute only
}

func Argument(pos int, v any) ContextVariable {
	return ContextVariable{Kind: VarArgument, Position: pos, Value: v}
}

func AttributeRef(path string) ContextVariable {
	return ContextVariable{Kind: VarAttribute, Path: path}
}

func (v ContextVariable) IsArgument() bool  { return v.Kind == VarArgument }
func (v ContextVariable) IsAttribute() bool { return v.Kind == VarAttribute }

func (v ContextVariable) String() string {
	if v.IsArgument() {
		return fmt.Sprintf("?%d", v.Position)
	}
	return v.Path
}
