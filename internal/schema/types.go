package schema

import (
	"strings"

	"github.com/google/uuid"
)

// IdentityAttribute is the name of the identity column every table carries.
const IdentityAttribute = "id"

// QuoteIdent quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// AttrKind tags what an attribute stores.
type AttrKind string

const (
	AttrScalar   AttrKind = "SCALAR"
	AttrBinary   AttrKind = "BINARY"
	AttrRelation AttrKind = "RELATION"
	AttrComputed AttrKind = "COMPUTED"
	AttrJSON     AttrKind = "JSON"
)

// ValueType is the declared value type of a scalar attribute.
type ValueType string

const (
	ValueString    ValueType = "STRING"
	ValueInteger   ValueType = "INTEGER"
	ValueDecimal   ValueType = "DECIMAL"
	ValueBoolean   ValueType = "BOOLEAN"
	ValueDate      ValueType = "DATE"
	ValueTimestamp ValueType = "TIMESTAMP"
	ValueUUID      ValueType = "UUID"
	ValueEncrypted ValueType = "ENCRYPTED"
	ValueBinary    ValueType = "BINARY"
	ValueJSON      ValueType = "JSON"
)

// HolderKind distinguishes Types from Mixins.
type HolderKind int

const (
	HolderType HolderKind = iota
	HolderMixin
)

// HolderRef is a non-owning reference to a Type or Mixin by its index in the Schema.
type HolderRef struct {
	Kind  HolderKind
	Index int
}

type Attribute struct {
	ID        uuid.UUID
	Name      string
	Kind      AttrKind
	ValueType ValueType
	Column    string
	Target    *HolderRef // relation target, nil otherwise
	Virtual   bool
	Indexed   bool
	Required  bool

	holder HolderRef
}

// Holder returns the Type or Mixin that declares the attribute.
func (a *Attribute) Holder() HolderRef { return a.holder }

// Persisted reports whether the attribute has a physical column.
func (a *Attribute) Persisted() bool {
	return !a.Virtual && a.Kind != AttrComputed
}

// IsRelation reports whether the attribute is a relation-to-one.
func (a *Attribute) IsRelation() bool {
	return a.Kind == AttrRelation && a.Target != nil
}

type Type struct {
	ID       uuid.UUID
	Name     string
	Table    string
	Abstract bool
	Attrs    []*Attribute

	index    int
	super    int // -1 when the type has no supertype
	mixins   []int
	subtypes []int
	byName   map[string]*Attribute
}

// Ref returns the holder reference for t.
func (t *Type) Ref() HolderRef { return HolderRef{Kind: HolderType, Index: t.index} }

// Own returns the attribute declared directly on t.
func (t *Type) Own(name string) (*Attribute, bool) {
	a, ok := t.byName[name]
	return a, ok
}

// Concrete reports whether t has a table of its own.
func (t *Type) Concrete() bool { return !t.Abstract }

type Mixin struct {
	ID    uuid.UUID
	Name  string
	Attrs []*Attribute

	index     int
	mixedInto []int
	byName    map[string]*Attribute
}

// Ref returns the holder reference for m.
func (m *Mixin) Ref() HolderRef { return HolderRef{Kind: HolderMixin, Index: m.index} }

// Own returns the attribute declared directly on m.
func (m *Mixin) Own(name string) (*Attribute, bool) {
	a, ok := m.byName[name]
	return a, ok
}

// UniqueConstraint names an ordered attribute list that must be unique per holder.
type UniqueConstraint struct {
	Name       string
	Holder     HolderRef
	Attributes []string
}

// Schema is the immutable graph of types and mixins built by a Builder.
type Schema struct {
	Name         string
	IdentityType ValueType

	types       []*Type
	mixins      []*Mixin
	constraints []*UniqueConstraint
	typeByName  map[string]int
	mixinByName map[string]int
}

// Types returns the schema's types in declaration order.
func (s *Schema) Types() []*Type { return s.types }

// Mixins returns the schema's mixins in declaration order.
func (s *Schema) Mixins() []*Mixin { return s.mixins }

// Constraints returns all unique constraints.
func (s *Schema) Constraints() []*UniqueConstraint { return s.constraints }

// Type looks up a type by name.
func (s *Schema) Type(name string) *Type {
	if i, ok := s.typeByName[name]; ok {
		return s.types[i]
	}
	return nil
}

// Mixin looks up a mixin by name.
func (s *Schema) Mixin(name string) *Mixin {
	if i, ok := s.mixinByName[name]; ok {
		return s.mixins[i]
	}
	return nil
}

// HolderName returns the name of the referenced Type or Mixin.
func (s *Schema) HolderName(ref HolderRef) string {
	if ref.Kind == HolderMixin {
		return s.mixins[ref.Index].Name
	}
	return s.types[ref.Index].Name
}

// Supertype returns the supertype of t, or nil.
func (s *Schema) Supertype(t *Type) *Type {
	if t.super < 0 {
		return nil
	}
	return s.types[t.super]
}

// MixinsOf returns the mixins attached to t.
func (s *Schema) MixinsOf(t *Type) []*Mixin {
	out := make([]*Mixin, len(t.mixins))
	for i, idx := range t.mixins {
		out[i] = s.mixins[idx]
	}
	return out
}

// Subtypes returns the direct subtypes of t.
func (s *Schema) Subtypes(t *Type) []*Type {
	out := make([]*Type, len(t.subtypes))
	for i, idx := range t.subtypes {
		out[i] = s.types[idx]
	}
	return out
}

// MixedInto returns the types m is directly attached to.
func (s *Schema) MixedInto(m *Mixin) []*Type {
	out := make([]*Type, len(m.mixedInto))
	for i, idx := range m.mixedInto {
		out[i] = s.types[idx]
	}
	return out
}
