// Package binding maps logical attribute paths of a root entity onto the
// physical table aliases and columns of one compiled query.
package binding

import (
	"errors"
	"strings"

	"github.com/atlekbai/entityql/internal/schema"
)

// ErrUnresolved is returned when an attribute path has no binding.
var ErrUnresolved = errors.New("unresolved attribute path")

// AliasBinding is one physical column reachable from a query.
type AliasBinding struct {
	Alias     string
	Attribute *schema.Attribute // nil for identity columns
	Column    string
	Type      *schema.Type // concrete type whose table Alias names
}

// Name is the logical attribute name the binding answers to.
func (a AliasBinding) Name() string {
	if a.Attribute == nil {
		return schema.IdentityAttribute
	}
	return a.Attribute.Name
}

// Qualified renders the column as "alias"."column".
func (a AliasBinding) Qualified() string {
	return schema.QuoteIdent(a.Alias) + "." + schema.QuoteIdent(a.Column)
}

func (a AliasBinding) String() string { return a.Alias + "." + a.Column }

// MappingBinding is one level of the attribute path space of a query. Nested
// levels exist only for relations that are joined.
type MappingBinding struct {
	Schema *schema.Schema
	Holder schema.HolderRef
	// PrimaryKey is the identity column of the holder's base table, nil when
	// the holder has no base table.
	PrimaryKey *AliasBinding
	Aliases    []AliasBinding
	Relations  map[string]*MappingBinding
}

// Resolve maps a dotted path to zero, one or many bindings. A path resolves to
// more than one binding when its attribute is stored in several subtype tables.
func (m *MappingBinding) Resolve(path string) []AliasBinding {
	head, rest, nested := strings.Cut(path, ".")
	if nested {
		if sub, ok := m.Relations[head]; ok {
			return sub.Resolve(rest)
		}
		if rest == schema.IdentityAttribute {
			return m.foreignKeys(head)
		}
		return nil
	}

	var out []AliasBinding
	if head == schema.IdentityAttribute && m.PrimaryKey != nil {
		out = append(out, *m.PrimaryKey)
	}
	for _, a := range m.Aliases {
		if a.Name() == head {
			out = append(out, a)
		}
	}
	return out
}

// foreignKeys returns the key columns of an unjoined relation whose target is
// stored in a single table shape.
func (m *MappingBinding) foreignKeys(name string) []AliasBinding {
	var out []AliasBinding
	for _, a := range m.Aliases {
		if a.Attribute == nil || a.Attribute.Name != name || !a.Attribute.IsRelation() {
			continue
		}
		if m.Schema.Polymorphic(*a.Attribute.Target) {
			return nil
		}
		out = append(out, a)
	}
	return out
}

// Relation returns the joined level for a relation attribute.
func (m *MappingBinding) Relation(name string) (*MappingBinding, bool) {
	sub, ok := m.Relations[name]
	return sub, ok
}
